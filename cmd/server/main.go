package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"reunite/internal/platform/config"
	"reunite/internal/platform/httpserver"
	"reunite/internal/platform/logger"
)

// main wires dependencies, starts the background workers and serves the
// HTTP API until SIGINT or SIGTERM. Business logic lives in internal
// service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.HospitalID.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := httpserver.New(cfg.Addr, app.Router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Sync.Run(gctx) })
	g.Go(func() error { return app.Dispatch.Run(gctx) })
	g.Go(func() error { return app.Directory.RunReplay(gctx, cfg.Delivery.SweepInterval) })
	g.Go(func() error {
		log.Info("server_started", "addr", cfg.Addr, "hospital_id", cfg.HospitalID.String())
		return httpserver.Run(gctx, srv)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server_stopped")
}

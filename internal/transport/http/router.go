// Package httptransport assembles the public HTTP API from the per-domain
// handlers.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"reunite/internal/platform/middleware"
	"reunite/pkg/platform/httputil"
)

const (
	RoleClinician   = "clinician"
	RoleCoordinator = "coordinator"
)

// DomainHandler mounts a domain's routes.
type DomainHandler interface {
	Register(r chi.Router)
}

// Config carries everything the router mounts.
type Config struct {
	Logger    *slog.Logger
	Validator middleware.OperatorValidator
	// Handlers are open to any authenticated operator.
	Handlers []DomainHandler
	// Admin handlers additionally require the coordinator role.
	Admin []DomainHandler
	// Health and Metrics are served without authentication.
	Health  http.HandlerFunc
	Metrics http.Handler
}

// AdminHandler is a handler whose write routes are coordinator-only.
type AdminHandler interface {
	RegisterAdmin(r chi.Router)
}

// NewRouter builds the chi router. Every API route runs behind request id,
// request time, panic recovery, access logging and operator auth.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(chimw.CleanPath)

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(api chi.Router) {
		api.Use(middleware.Logger(cfg.Logger))
		api.Use(chimw.Timeout(60 * time.Second))
		api.Use(middleware.RequireOperator(cfg.Validator, cfg.Logger))

		for _, h := range cfg.Handlers {
			h.Register(api)
		}
		api.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireRole(cfg.Logger, RoleCoordinator))
			for _, h := range cfg.Admin {
				if a, ok := h.(AdminHandler); ok {
					a.RegisterAdmin(admin)
					continue
				}
				h.Register(admin)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	return r
}

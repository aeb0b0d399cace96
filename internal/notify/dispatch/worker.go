package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reunite/internal/notify/metrics"
	"reunite/internal/notify/models"
	"reunite/internal/notify/transport"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	"reunite/pkg/platform/retry"
	"reunite/pkg/platform/sentinel"
	"reunite/pkg/platform/tx"
	"reunite/pkg/requestcontext"
)

type Store interface {
	FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error)
	ListDue(ctx context.Context, owner domain.HospitalID, now time.Time, limit int) ([]*models.Notification, error)
	MarkDelivered(ctx context.Context, id domain.NotificationID, at time.Time) error
	MarkRetry(ctx context.Context, id domain.NotificationID, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id domain.NotificationID, attempts int, lastErr string) error
}

type Outbox interface {
	Write(ctx context.Context, entityType outbox.EntityType, entityID string, payload any) error
}

// Config tunes delivery.
type Config struct {
	MaxRetries    int
	Backoff       retry.Backoff
	SendTimeout   time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
	BatchSize     int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		Backoff:       retry.Backoff{Base: 10 * time.Second, Max: 10 * time.Minute},
		SendTimeout:   15 * time.Second,
		SweepInterval: 15 * time.Second,
		PopTimeout:    5 * time.Second,
		BatchSize:     50,
	}
}

// Worker delivers rows owned by this hospital. A failed send is retried
// with backoff; after MaxRetries attempts the row is marked failed for
// operator follow-up.
type Worker struct {
	store     Store
	queue     Queue
	transport transport.Transport
	outbox    Outbox
	self      domain.HospitalID
	cfg       Config
	tx        tx.Runner
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithTx(runner tx.Runner) Option {
	return func(w *Worker) {
		w.tx = runner
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithConfig(cfg Config) Option {
	return func(w *Worker) {
		w.cfg = cfg
	}
}

func NewWorker(store Store, queue Queue, t transport.Transport, ob Outbox, self domain.HospitalID, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		queue:     queue,
		transport: t,
		outbox:    ob,
		self:      self,
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.tx == nil {
		w.tx = tx.NewShardedRunner()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Run consumes the queue and sweeps the store until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "notification_dispatch_started", "hospital_id", w.self)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.consume(ctx) })
	g.Go(func() error { return w.sweepLoop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) consume(ctx context.Context) error {
	for {
		id, ok, err := w.queue.Pop(ctx, w.cfg.PopTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.logger.WarnContext(ctx, "notification_queue_pop_failed", "error", err)
			sleep(ctx, time.Second)
			continue
		}
		if !ok {
			continue
		}
		if err := w.Deliver(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "notification_delivery_error", "notification_id", id, "error", err)
		}
	}
}

func (w *Worker) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.ErrorContext(ctx, "notification_sweep_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep attempts every due row and returns how many were attempted.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	due, err := w.store.ListDue(ctx, w.self, requestcontext.Now(ctx), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, n := range due {
		if err := w.Deliver(ctx, n.ID); err != nil {
			w.logger.ErrorContext(ctx, "notification_delivery_error", "notification_id", n.ID, "error", err)
		}
	}
	return len(due), nil
}

// Deliver makes one attempt at id if it is owned here, pending and due.
func (w *Worker) Deliver(ctx context.Context, id domain.NotificationID) error {
	claimed, err := w.queue.Claim(ctx, id, w.cfg.SendTimeout*2)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	defer func() { _ = w.queue.Release(context.WithoutCancel(ctx), id) }()

	n, err := w.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	if n.OriginHospitalID != w.self || !n.IsDue(now) {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	start := time.Now()
	sendErr := w.transport.Send(sendCtx, n.Channel, n.Recipient, n.Message)
	cancel()
	w.metrics.ObserveDelivery(time.Since(start).Seconds())

	if sendErr == nil {
		return w.record(ctx, n, "delivered", func(txCtx context.Context) error {
			return w.store.MarkDelivered(txCtx, n.ID, now)
		})
	}

	attempts := n.Attempts + 1
	if attempts >= w.cfg.MaxRetries {
		w.logger.ErrorContext(ctx, "notification_delivery_failed",
			"notification_id", n.ID,
			"patient_id", n.PatientID,
			"channel", n.Channel,
			"attempts", attempts,
			"error", sendErr,
		)
		return w.record(ctx, n, "failed", func(txCtx context.Context) error {
			return w.store.MarkFailed(txCtx, n.ID, attempts, sendErr.Error())
		})
	}
	next := now.Add(w.cfg.Backoff.Delay(attempts))
	w.logger.WarnContext(ctx, "notification_delivery_retry",
		"notification_id", n.ID,
		"attempts", attempts,
		"next_attempt_at", next,
		"error", sendErr,
	)
	w.metrics.IncrementDelivery(string(n.Channel), "retry")
	return w.store.MarkRetry(ctx, n.ID, attempts, next, sendErr.Error())
}

// record applies a final state and publishes the row so peers see it.
func (w *Worker) record(ctx context.Context, n *models.Notification, result string, mark func(context.Context) error) error {
	err := w.tx.RunInTx(tx.WithShardKey(ctx, "notification:"+n.IdempotencyKey), func(txCtx context.Context) error {
		if err := mark(txCtx); err != nil {
			return err
		}
		updated, err := w.store.FindByID(txCtx, n.ID)
		if err != nil {
			return err
		}
		return w.outbox.Write(txCtx, outbox.EntityFamilyNotification, updated.ID.String(), updated)
	})
	if err != nil {
		return err
	}
	w.metrics.IncrementDelivery(string(n.Channel), result)
	if result == "delivered" {
		w.logger.InfoContext(ctx, "notification_delivered", "notification_id", n.ID, "channel", n.Channel)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

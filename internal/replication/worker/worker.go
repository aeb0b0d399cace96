// Package worker runs the per-hospital sync loop: push the outbox to the hub,
// pull peer writes and merge them, and track who is reachable.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	hmodels "reunite/internal/hospital/models"
	"reunite/internal/replication/hub"
	"reunite/internal/replication/metrics"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	"reunite/pkg/platform/circuit"
	"reunite/pkg/platform/retry"
	"reunite/pkg/platform/sentinel"
	"reunite/pkg/requestcontext"
)

var tracer = otel.Tracer("reunite/replication")

// Hospitals is the slice of the registry the worker maintains.
type Hospitals interface {
	SetSyncStatus(ctx context.Context, id domain.HospitalID, status hmodels.SyncStatus) error
	RecordContact(ctx context.Context, id domain.HospitalID, at time.Time) error
	SweepPeers(ctx context.Context, cutoff time.Time, offlineAfter int) ([]domain.HospitalID, error)
	PublishHeartbeat(ctx context.Context) error
}

// Config tunes the sync loop.
type Config struct {
	Interval     time.Duration
	Backoff      retry.Backoff
	MaxRetries   int
	OfflineAfter int
	BatchSize    int
	// AckTimeout is how long a sent entry may wait for its echo before it
	// is pushed again.
	AckTimeout time.Duration
	LockTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		Backoff:      retry.Backoff{Base: 5 * time.Second, Max: 10 * time.Minute},
		MaxRetries:   20,
		OfflineAfter: 3,
		BatchSize:    100,
		AckTimeout:   5 * time.Minute,
		LockTTL:      90 * time.Second,
	}
}

// Report summarizes one round.
type Report struct {
	Pushed      int
	Retried     int
	Failed      int
	Requeued    int
	Acked       int
	Applied     int
	Rejected    int
	WentOffline []domain.HospitalID
}

// Worker owns replication for one hospital. Local writes never wait on it:
// while the hub is unreachable entries stay in the outbox and go out on the
// first round that reaches it.
type Worker struct {
	outbox    outbox.Store
	hub       hub.Hub
	router    *Router
	hospitals Hospitals
	self      domain.HospitalID
	cfg       Config
	breaker   *circuit.Breaker
	locker    Locker
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
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

func WithLocker(l Locker) Option {
	return func(w *Worker) {
		w.locker = l
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		w.breaker = b
	}
}

func New(store outbox.Store, h hub.Hub, router *Router, hospitals Hospitals, self domain.HospitalID, opts ...Option) *Worker {
	w := &Worker{
		outbox:    store,
		hub:       h,
		router:    router,
		hospitals: hospitals,
		self:      self,
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.locker == nil {
		w.locker = NewLocalLocker()
	}
	if w.breaker == nil {
		w.breaker = circuit.New("sync_hub", circuit.WithFailureThreshold(w.cfg.OfflineAfter))
	}
	return w
}

// Run holds the hospital's sync lock and runs rounds every Interval until
// ctx is done. A process that cannot get the lock stays on standby.
func (w *Worker) Run(ctx context.Context) error {
	key := "reunite:sync:" + w.self.String()
	w.logger.InfoContext(ctx, "sync_worker_started", "hospital_id", w.self)
	for {
		lease, err := w.locker.Obtain(ctx, key, w.cfg.LockTTL)
		switch {
		case err == nil:
			w.lead(ctx, lease)
			_ = lease.Release(context.WithoutCancel(ctx))
		case errors.Is(err, ErrNotObtained):
			w.logger.DebugContext(ctx, "sync_worker_standby", "hospital_id", w.self)
		default:
			w.logger.WarnContext(ctx, "sync_lock_failed", "error", err)
		}
		if !wait(ctx, w.cfg.Interval) {
			return nil
		}
	}
}

func (w *Worker) lead(ctx context.Context, lease Lease) {
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "sync_round_incomplete", "error", err)
		}
		if !wait(ctx, w.cfg.Interval) {
			return
		}
		if err := lease.Refresh(ctx, w.cfg.LockTTL); err != nil {
			w.logger.WarnContext(ctx, "sync_lock_lost", "hospital_id", w.self, "error", err)
			return
		}
	}
}

// RunOnce pushes due outbox entries, pulls and merges peer entries, and
// updates liveness. The returned error is the hub failure, if any.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "sync.round")
	defer span.End()
	start := time.Now()
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))
	now := requestcontext.Now(ctx)

	var r Report
	if !w.breaker.IsOpen() {
		if err := w.hospitals.PublishHeartbeat(ctx); err != nil {
			w.logger.WarnContext(ctx, "sync_heartbeat_failed", "error", err)
		}
	}

	hubErr := w.push(ctx, now, &r)
	if hubErr == nil {
		hubErr = w.pull(ctx, now, &r)
	}
	if hubErr == nil || errors.Is(hubErr, sentinel.ErrUnavailable) {
		w.observeHub(ctx, hubErr)
	}

	if hubErr == nil {
		// Peers can only be judged while this node can see the hub.
		offline, err := w.hospitals.SweepPeers(ctx, now.Add(-w.cfg.Interval), w.cfg.OfflineAfter)
		if err != nil {
			w.logger.ErrorContext(ctx, "sync_peer_sweep_failed", "error", err)
		}
		r.WentOffline = offline
	}

	span.SetAttributes(
		attribute.Int("sync.pushed", r.Pushed),
		attribute.Int("sync.applied", r.Applied),
		attribute.Int("sync.acked", r.Acked),
	)
	w.metrics.ObserveRound(time.Since(start).Seconds())
	if r.Pushed > 0 || r.Applied > 0 || r.Failed > 0 {
		w.logger.InfoContext(ctx, "sync_round_completed",
			"hospital_id", w.self,
			"pushed", r.Pushed,
			"acked", r.Acked,
			"applied", r.Applied,
			"rejected", r.Rejected,
			"failed", r.Failed,
		)
	}
	return r, hubErr
}

func (w *Worker) push(ctx context.Context, now time.Time, r *Report) error {
	stale, err := w.outbox.ListUnackedSentBefore(ctx, now.Add(-w.cfg.AckTimeout), w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, e := range stale {
		if err := w.outbox.MarkRetry(ctx, e.ID, e.RetryCount, now, "no acknowledgement from hub"); err != nil {
			return err
		}
		r.Requeued++
	}

	due, err := w.outbox.ListDue(ctx, now, w.cfg.BatchSize)
	if err != nil || len(due) == 0 {
		return err
	}
	if pubErr := w.hub.Publish(ctx, due); pubErr != nil {
		for _, e := range due {
			if err := w.backoff(ctx, e, now, pubErr, r); err != nil {
				return err
			}
		}
		return pubErr
	}

	ids := make([]domain.OutboxEntryID, len(due))
	for i, e := range due {
		ids[i] = e.ID
	}
	if err := w.outbox.MarkSent(ctx, ids, now); err != nil {
		return err
	}
	r.Pushed += len(due)
	w.metrics.AddPushed("sent", len(due))
	return nil
}

// backoff keeps a failed entry pending with a growing delay, or marks it
// failed once it has used up MaxRetries.
func (w *Worker) backoff(ctx context.Context, e *outbox.Entry, now time.Time, cause error, r *Report) error {
	retries := e.RetryCount + 1
	if retries >= w.cfg.MaxRetries {
		w.logger.ErrorContext(ctx, "sync_entry_failed",
			"outbox_id", e.ID,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"retries", retries,
			"error", cause,
		)
		r.Failed++
		w.metrics.AddPushed("failed", 1)
		return w.outbox.MarkFailed(ctx, e.ID, cause.Error())
	}
	r.Retried++
	w.metrics.AddPushed("retry", 1)
	return w.outbox.MarkRetry(ctx, e.ID, retries, now.Add(w.cfg.Backoff.Delay(retries)), cause.Error())
}

func (w *Worker) pull(ctx context.Context, now time.Time, r *Report) error {
	entries, err := w.hub.Poll(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Origin == w.self {
			if err := w.outbox.MarkAcked(ctx, e.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return err
			}
			r.Acked++
			w.metrics.IncrementPulled(string(e.EntityType), "acked")
			continue
		}
		if err := w.hospitals.RecordContact(ctx, e.Origin, now); err != nil {
			w.logger.WarnContext(ctx, "sync_record_contact_failed", "peer_hospital_id", e.Origin, "error", err)
		}
		handled, err := w.router.Handle(ctx, e)
		switch {
		case err != nil:
			r.Rejected++
			w.metrics.IncrementPulled(string(e.EntityType), "rejected")
			w.logger.ErrorContext(ctx, "sync_entry_rejected",
				"outbox_id", e.ID,
				"origin_hospital_id", e.Origin,
				"entity_type", e.EntityType,
				"entity_id", e.EntityID,
				"error", err,
			)
		case handled:
			r.Applied++
			w.metrics.IncrementPulled(string(e.EntityType), "applied")
		default:
			w.metrics.IncrementPulled(string(e.EntityType), "skipped")
		}
	}
	return w.hub.Commit(ctx)
}

// observeHub drives this node's own sync status from hub reachability.
func (w *Worker) observeHub(ctx context.Context, hubErr error) {
	if hubErr == nil {
		w.metrics.SetHubUp(true)
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.logger.InfoContext(ctx, "sync_hub_reachable", "hospital_id", w.self)
		}
		if err := w.hospitals.SetSyncStatus(ctx, w.self, hmodels.SyncStatusOnline); err != nil {
			w.logger.WarnContext(ctx, "sync_status_update_failed", "error", err)
		}
		return
	}
	w.metrics.SetHubUp(false)
	if _, change := w.breaker.RecordFailure(); change.Opened {
		w.logger.WarnContext(ctx, "sync_hub_unreachable", "hospital_id", w.self, "error", hubErr)
		if err := w.hospitals.SetSyncStatus(ctx, w.self, hmodels.SyncStatusOffline); err != nil {
			w.logger.WarnContext(ctx, "sync_status_update_failed", "error", err)
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

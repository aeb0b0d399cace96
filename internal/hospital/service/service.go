// Package service is the hospital registry: the authoritative list of field
// hospitals, their capacity and their liveness as seen from this node.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reunite/internal/hospital/models"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/sentinel"
	"reunite/pkg/platform/tx"
	"reunite/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, h *models.Hospital) error
	Upsert(ctx context.Context, h *models.Hospital) error
	Update(ctx context.Context, h *models.Hospital) error
	FindByID(ctx context.Context, id domain.HospitalID) (*models.Hospital, error)
	List(ctx context.Context) ([]*models.Hospital, error)
}

type Outbox interface {
	Write(ctx context.Context, entityType outbox.EntityType, entityID string, payload any) error
}

// Service manages the hospital registry.
type Service struct {
	store  Store
	outbox Outbox
	self   domain.HospitalID
	tx     tx.Runner
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// New constructs the registry for the node identified by self.
func New(store Store, ob Outbox, self domain.HospitalID, opts ...Option) *Service {
	s := &Service{store: store, outbox: ob, self: self}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewShardedRunner()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Self is the hospital this node runs at.
func (s *Service) Self() domain.HospitalID {
	return s.self
}

// Register creates a new active hospital.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Hospital, error) {
	hospitalID, err := domain.ParseHospitalID(req.ID)
	if err != nil {
		return nil, err
	}
	var created *models.Hospital
	err = s.tx.RunInTx(tx.WithShardKey(ctx, "hospital:"+hospitalID.String()), func(txCtx context.Context) error {
		h, err := models.NewHospital(hospitalID, req.Name, req.Location, req.Capacity, requestcontext.Now(txCtx))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := s.store.Create(txCtx, h); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "hospital already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register hospital")
		}
		if err := s.outbox.Write(txCtx, outbox.EntityHospital, h.ID.String(), h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue hospital for sync")
		}
		created = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "hospital_registered",
		"registered_hospital_id", created.ID,
		"capacity", created.Capacity,
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

// Deactivate takes a hospital out of service. It is never deleted.
func (s *Service) Deactivate(ctx context.Context, id domain.HospitalID) (*models.Hospital, error) {
	return s.transition(ctx, id, "hospital_deactivated", func(h *models.Hospital, now time.Time) error {
		if err := h.CanDeactivate(); err != nil {
			return err
		}
		h.ApplyDeactivation(now)
		return nil
	})
}

// Reactivate returns a deactivated hospital to service.
func (s *Service) Reactivate(ctx context.Context, id domain.HospitalID) (*models.Hospital, error) {
	return s.transition(ctx, id, "hospital_reactivated", func(h *models.Hospital, now time.Time) error {
		if err := h.CanReactivate(); err != nil {
			return err
		}
		h.ApplyReactivation(now)
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id domain.HospitalID, event string, apply func(*models.Hospital, time.Time) error) (*models.Hospital, error) {
	var updated *models.Hospital
	err := s.tx.RunInTx(tx.WithShardKey(ctx, "hospital:"+id.String()), func(txCtx context.Context) error {
		h, err := s.find(txCtx, id)
		if err != nil {
			return err
		}
		if err := apply(h, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.store.Update(txCtx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hospital")
		}
		if err := s.outbox.Write(txCtx, outbox.EntityHospital, h.ID.String(), h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue hospital for sync")
		}
		updated = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, event,
		"target_hospital_id", id,
		"operator", requestcontext.OperatorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// Get returns one hospital.
func (s *Service) Get(ctx context.Context, id domain.HospitalID) (*models.Hospital, error) {
	return s.find(ctx, id)
}

func (s *Service) find(ctx context.Context, id domain.HospitalID) (*models.Hospital, error) {
	h, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeHospitalNotRegistered, "hospital %s is not registered", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load hospital")
	}
	return h, nil
}

// List returns every known hospital, active or not.
func (s *Service) List(ctx context.Context) ([]*models.Hospital, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list hospitals")
	}
	return list, nil
}

// RequireActive returns the hospital if it is registered and active.
// Unknown and inactive hospitals are both HospitalNotRegistered.
func (s *Service) RequireActive(ctx context.Context, id domain.HospitalID) (*models.Hospital, error) {
	h, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !h.Active {
		return nil, dErrors.Newf(dErrors.CodeHospitalNotRegistered, "hospital %s is not active", id)
	}
	return h, nil
}

// FanOutTargets returns active hospitals that are not offline. This node is
// always a target while active, whatever its own hub connectivity.
func (s *Service) FanOutTargets(ctx context.Context) ([]*models.Hospital, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]*models.Hospital, 0, len(list))
	for _, h := range list {
		if h.IsFanOutTarget() || (h.ID == s.self && h.Active) {
			targets = append(targets, h)
		}
	}
	return targets, nil
}

// IsFanOutTarget reports whether id currently receives fan-out.
// Unknown hospitals are not targets.
func (s *Service) IsFanOutTarget(ctx context.Context, id domain.HospitalID) bool {
	h, err := s.store.FindByID(ctx, id)
	if err != nil {
		return false
	}
	if h.ID == s.self {
		return h.Active
	}
	return h.IsFanOutTarget()
}

// SetSyncStatus records this node's own replication state.
func (s *Service) SetSyncStatus(ctx context.Context, id domain.HospitalID, status models.SyncStatus) error {
	if !status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid sync status %q", status)
	}
	return s.tx.RunInTx(tx.WithShardKey(ctx, "hospital:"+id.String()), func(txCtx context.Context) error {
		h, err := s.find(txCtx, id)
		if err != nil {
			return err
		}
		if h.SyncStatus == status {
			return nil
		}
		now := requestcontext.Now(txCtx)
		h.SyncStatus = status
		if status == models.SyncStatusOnline {
			h.LastSyncAt = &now
			h.ConsecutiveFailures = 0
		}
		return s.store.Update(txCtx, h)
	})
}

// RecordContact marks a peer reachable; it is a no-op for unknown peers.
func (s *Service) RecordContact(ctx context.Context, id domain.HospitalID, at time.Time) error {
	return s.tx.RunInTx(tx.WithShardKey(ctx, "hospital:"+id.String()), func(txCtx context.Context) error {
		h, err := s.store.FindByID(txCtx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		wasOffline := h.SyncStatus == models.SyncStatusOffline
		h.RecordContact(at)
		if err := s.store.Update(txCtx, h); err != nil {
			return err
		}
		if wasOffline {
			s.logger.InfoContext(ctx, "peer_back_online", "peer_hospital_id", id)
		}
		return nil
	})
}

// SweepPeers counts a missed round for every peer not heard from since
// cutoff and marks peers offline after offlineAfter consecutive misses.
// It returns the peers that went offline in this sweep.
func (s *Service) SweepPeers(ctx context.Context, cutoff time.Time, offlineAfter int) ([]domain.HospitalID, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var wentOffline []domain.HospitalID
	for _, peer := range list {
		if peer.ID == s.self || !peer.Active {
			continue
		}
		seen := peer.CreatedAt
		if peer.LastSyncAt != nil {
			seen = *peer.LastSyncAt
		}
		if !seen.Before(cutoff) {
			continue
		}
		err := s.tx.RunInTx(tx.WithShardKey(ctx, "hospital:"+peer.ID.String()), func(txCtx context.Context) error {
			h, err := s.store.FindByID(txCtx, peer.ID)
			if err != nil {
				return err
			}
			if h.RecordMissedSync(offlineAfter) {
				wentOffline = append(wentOffline, h.ID)
			}
			return s.store.Update(txCtx, h)
		})
		if err != nil {
			return wentOffline, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep peer liveness")
		}
	}
	for _, id := range wentOffline {
		s.logger.WarnContext(ctx, "peer_marked_offline",
			"peer_hospital_id", id,
			"offline_after", offlineAfter,
		)
	}
	return wentOffline, nil
}

// PublishHeartbeat queues this node's hospital record as a liveness signal.
func (s *Service) PublishHeartbeat(ctx context.Context) error {
	h, err := s.find(ctx, s.self)
	if err != nil {
		return err
	}
	return s.outbox.Write(ctx, outbox.EntityHeartbeat, h.ID.String(), h)
}

// ApplyReplicated merges a hospital record received from a peer. Registry
// fields follow the newer UpdatedAt; liveness stays local.
func (s *Service) ApplyReplicated(ctx context.Context, remote *models.Hospital) error {
	if remote == nil || remote.ID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "replicated hospital missing id")
	}
	return s.tx.RunInTx(tx.WithShardKey(ctx, "hospital:"+remote.ID.String()), func(txCtx context.Context) error {
		local, err := s.store.FindByID(txCtx, remote.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			h := *remote
			h.SyncStatus = models.SyncStatusOnline
			h.ConsecutiveFailures = 0
			now := requestcontext.Now(txCtx)
			h.LastSyncAt = &now
			return s.store.Upsert(txCtx, &h)
		}
		if err != nil {
			return err
		}
		if !remote.UpdatedAt.After(local.UpdatedAt) {
			return nil
		}
		local.Name = remote.Name
		local.Location = remote.Location
		local.Capacity = remote.Capacity
		local.Active = remote.Active
		local.UpdatedAt = remote.UpdatedAt
		return s.store.Update(txCtx, local)
	})
}

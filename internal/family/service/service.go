// Package service maintains the family graph: who is related to whom among
// identified patients.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"reunite/internal/family/models"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/tx"
	"reunite/pkg/requestcontext"
)

var tracer = otel.Tracer("reunite/family")

type Store interface {
	Link(ctx context.Context, r *models.Relationship) (bool, error)
	EdgesOf(ctx context.Context, patientID domain.PatientID) ([]*models.Relationship, error)
}

type Outbox interface {
	Write(ctx context.Context, entityType outbox.EntityType, entityID string, payload any) error
}

// LinkListener is told about edges that did not exist before. The
// notification engine uses it to run a nearby check for the new pair.
type LinkListener interface {
	OnRelationshipLinked(ctx context.Context, r *models.Relationship) error
}

type Service struct {
	store    Store
	outbox   Outbox
	listener LinkListener
	tx       tx.Runner
	logger   *slog.Logger
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

func WithLinkListener(l LinkListener) Option {
	return func(s *Service) {
		s.listener = l
	}
}

func New(store Store, ob Outbox, opts ...Option) *Service {
	s := &Service{store: store, outbox: ob}
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

// Link asserts that req.PatientID is req.Label of req.RelativeID. Linking an
// existing pair again is a no-op that returns the stored edge's view.
func (s *Service) Link(ctx context.Context, req models.LinkRequest) (*models.Relationship, bool, error) {
	ctx, span := tracer.Start(ctx, "family.Link")
	defer span.End()

	patientID, err := domain.ParsePatientID(req.PatientID)
	if err != nil {
		return nil, false, err
	}
	relativeID, err := domain.ParsePatientID(req.RelativeID)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.String("patient_id", patientID.String()), attribute.String("relative_id", relativeID.String()))

	assertedBy := requestcontext.OperatorID(ctx)
	r, err := models.NewRelationship(patientID, relativeID, models.Label(req.Label), assertedBy, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, err
	}

	var created bool
	err = s.tx.RunInTx(tx.WithShardKey(ctx, "family:"+r.Key()), func(txCtx context.Context) error {
		created, err = s.store.Link(txCtx, r)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return s.outbox.Write(txCtx, outbox.EntityFamilyRelationship, r.Key(), r)
	})
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link relationship")
	}

	if created {
		s.logger.InfoContext(ctx, "family_linked",
			"patient_a", r.PatientA,
			"patient_b", r.PatientB,
			"label", r.Label,
			"asserted_by", assertedBy,
		)
		s.announce(ctx, r)
	}
	return r, created, nil
}

// RelativesOf lists every patient linked to patientID, labelled by what
// they are to patientID.
func (s *Service) RelativesOf(ctx context.Context, patientID domain.PatientID) ([]models.Relative, error) {
	edges, err := s.store.EdgesOf(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationships")
	}
	out := make([]models.Relative, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.RelativeOf(patientID))
	}
	return out, nil
}

// ApplyReplicated stores an edge asserted at another hospital. Edges are
// grow-only so replay is harmless.
func (s *Service) ApplyReplicated(ctx context.Context, r *models.Relationship) error {
	if r == nil || !r.Label.IsValid() || r.PatientA == r.PatientB || r.PatientA > r.PatientB {
		return dErrors.New(dErrors.CodeInvalidInput, "malformed replicated relationship")
	}
	created, err := s.store.Link(ctx, r)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply replicated relationship")
	}
	if created {
		s.logger.InfoContext(ctx, "family_link_replicated", "patient_a", r.PatientA, "patient_b", r.PatientB)
		s.announce(ctx, r)
	}
	return nil
}

func (s *Service) announce(ctx context.Context, r *models.Relationship) {
	if s.listener == nil {
		return
	}
	if err := s.listener.OnRelationshipLinked(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "family_link_listener_failed", "key", r.Key(), "error", err)
	}
}

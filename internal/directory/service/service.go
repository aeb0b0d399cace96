// Package service is the patient location directory: where each patient
// is, how they got there and which hospitals have been asked to look for
// them.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/blake2b"

	"reunite/internal/directory/metrics"
	"reunite/internal/directory/models"
	hmodels "reunite/internal/hospital/models"
	"reunite/internal/replication/merge"
	"reunite/internal/replication/outbox"
	"reunite/internal/replication/reconcile"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/sentinel"
	pstrings "reunite/pkg/platform/strings"
	"reunite/pkg/platform/tx"
	"reunite/pkg/requestcontext"
)

var tracer = otel.Tracer("reunite/directory")

const (
	maxDescriptionLength = 2048
	replayBatchSize      = 100
)

type Store interface {
	FindByPatient(ctx context.Context, patientID domain.PatientID) (*models.LocationRecord, error)
	Save(ctx context.Context, r *models.LocationRecord) error
	ListByHospital(ctx context.Context, hospitalID domain.HospitalID) ([]*models.LocationRecord, error)
	CountCurrentByHospital(ctx context.Context) (map[domain.HospitalID]int, error)
	AppendTransfer(ctx context.Context, t *models.Transfer) error
	ListTransfers(ctx context.Context, patientID domain.PatientID) ([]*models.Transfer, error)
	CreateBroadcast(ctx context.Context, b *models.Broadcast) error
	FindBroadcast(ctx context.Context, hospitalID domain.HospitalID, patientID domain.PatientID, kind models.BroadcastType, hash string) (*models.Broadcast, error)
	ListBroadcasts(ctx context.Context, hospitalID domain.HospitalID) ([]*models.Broadcast, error)
	SavePendingEvent(ctx context.Context, e *models.LocationEvent) error
	ListPendingEvents(ctx context.Context, limit int) ([]*models.LocationEvent, error)
	DeletePendingEvent(ctx context.Context, id domain.EventID) error
}

type Hospitals interface {
	Get(ctx context.Context, id domain.HospitalID) (*hmodels.Hospital, error)
	RequireActive(ctx context.Context, id domain.HospitalID) (*hmodels.Hospital, error)
	List(ctx context.Context) ([]*hmodels.Hospital, error)
	FanOutTargets(ctx context.Context) ([]*hmodels.Hospital, error)
}

type Outbox interface {
	Write(ctx context.Context, entityType outbox.EntityType, entityID string, payload any) error
}

// Notifier receives committed location events.
type Notifier interface {
	OnLocationRecorded(ctx context.Context, event models.LocationEvent) error
}

// Relay pushes broadcasts to hospital radio/display channels.
type Relay interface {
	Relay(ctx context.Context, b *models.Broadcast) error
}

type Reconciler interface {
	Enqueue(ctx context.Context, items ...*reconcile.Item) error
}

// Service implements the location directory.
type Service struct {
	store        Store
	hospitals    Hospitals
	outbox       Outbox
	self         domain.HospitalID
	notifier     Notifier
	relay        Relay
	reconciler   Reconciler
	autoTransfer bool
	tx           tx.Runner
	logger       *slog.Logger
	metrics      *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithRelay(r Relay) Option {
	return func(s *Service) {
		s.relay = r
	}
}

func WithReconciler(r Reconciler) Option {
	return func(s *Service) {
		s.reconciler = r
	}
}

// WithAutoTransfer controls whether recording a patient at a hospital other
// than their current one is treated as a transfer (true, the default) or
// rejected as a conflict.
func WithAutoTransfer(enabled bool) Option {
	return func(s *Service) {
		s.autoTransfer = enabled
	}
}

func New(store Store, hospitals Hospitals, ob Outbox, self domain.HospitalID, opts ...Option) *Service {
	s := &Service{
		store:        store,
		hospitals:    hospitals,
		outbox:       ob,
		self:         self,
		autoTransfer: true,
	}
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

func patientKey(ctx context.Context, id domain.PatientID) context.Context {
	return tx.WithShardKey(ctx, "patient:"+id.String())
}

// RecordLocation records that patientID is at hospitalID. A first record
// identifies the patient; a record at another hospital is a transfer; a
// record at the same hospital only updates clinical status.
func (s *Service) RecordLocation(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID, identifiedBy string, status models.ClinicalStatus) (*models.RecordResult, error) {
	ctx, span := tracer.Start(ctx, "directory.RecordLocation")
	defer span.End()
	span.SetAttributes(attribute.String("patient_id", patientID.String()), attribute.String("hospital_id", hospitalID.String()))

	if _, err := domain.ParsePatientID(patientID.String()); err != nil {
		return nil, err
	}
	if status == "" {
		status = models.StatusUnknown
	}
	if !status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid clinical status %q", status)
	}
	identifiedBy = s.actor(ctx, identifiedBy)
	if identifiedBy == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identified_by is required")
	}
	if _, err := s.hospitals.RequireActive(ctx, hospitalID); err != nil {
		return nil, err
	}

	var (
		result *models.RecordResult
		event  *models.LocationEvent
	)
	err := s.tx.RunInTx(patientKey(ctx, patientID), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		current, err := s.store.FindByPatient(txCtx, patientID)
		if errors.Is(err, sentinel.ErrNotFound) {
			r := models.NewLocationRecord(patientID, hospitalID, identifiedBy, status, s.self, now)
			if err := s.persist(txCtx, r); err != nil {
				return err
			}
			result = &models.RecordResult{Record: r, Outcome: models.OutcomeCreated}
			event, err = s.journal(txCtx, models.NewLocationEvent(models.EventIdentified, r, ""))
			return err
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load location")
		}
		// A terminal record is closed. Re-admission registers a new patient id.
		if current.IsTerminal() {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "patient %s is %s", patientID, current.ClinicalStatus)
		}

		if current.HospitalID != hospitalID {
			if !s.autoTransfer {
				return dErrors.Newf(dErrors.CodeConflict, "patient %s is at %s; transfer explicitly", patientID, current.HospitalID)
			}
			previous := current.HospitalID
			if err := s.transfer(txCtx, current, previous, hospitalID, models.ReasonReidentified, identifiedBy, now); err != nil {
				return err
			}
			current.IdentifiedBy = identifiedBy
			current.IdentifiedAt = now
			current.VerifyingHospitalID = s.self
			if status != models.StatusUnknown {
				current.ApplyStatus(status, s.self, now)
			}
			if err := s.persist(txCtx, current); err != nil {
				return err
			}
			result = &models.RecordResult{Record: current, Outcome: models.OutcomeTransferred}
			event, err = s.journal(txCtx, models.NewLocationEvent(models.EventTransferred, current, previous))
			return err
		}

		if status == models.StatusUnknown || !current.ApplyStatus(status, s.self, now) {
			result = &models.RecordResult{Record: current, Outcome: models.OutcomeUnchanged}
			return nil
		}
		if err := s.persist(txCtx, current); err != nil {
			return err
		}
		result = &models.RecordResult{Record: current, Outcome: models.OutcomeStatusUpdated}
		event, err = s.journal(txCtx, models.NewLocationEvent(models.EventStatusChanged, current, ""))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncrementWrite(string(result.Outcome))
	s.logger.InfoContext(ctx, "location_recorded",
		"patient_id", patientID,
		"location_hospital_id", hospitalID,
		"outcome", result.Outcome,
		"clinical_status", result.Record.ClinicalStatus,
		"identified_by", identifiedBy,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, event)
	return result, nil
}

// Transfer moves a patient from one hospital to another. from must be the
// patient's current hospital and to must be active.
func (s *Service) Transfer(ctx context.Context, patientID domain.PatientID, from, to domain.HospitalID, reason string) (*models.LocationRecord, error) {
	ctx, span := tracer.Start(ctx, "directory.Transfer")
	defer span.End()

	if _, err := domain.ParsePatientID(patientID.String()); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "transfer"
	}
	if _, err := s.hospitals.RequireActive(ctx, to); err != nil {
		return nil, err
	}
	actor := s.actor(ctx, "")

	var (
		updated *models.LocationRecord
		event   *models.LocationEvent
	)
	err := s.tx.RunInTx(patientKey(ctx, patientID), func(txCtx context.Context) error {
		current, err := s.find(txCtx, patientID)
		if err != nil {
			return err
		}
		if err := s.transfer(txCtx, current, from, to, reason, actor, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.persist(txCtx, current); err != nil {
			return err
		}
		updated = current
		event, err = s.journal(txCtx, models.NewLocationEvent(models.EventTransferred, current, from))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncrementWrite(string(models.OutcomeTransferred))
	s.logger.InfoContext(ctx, "patient_transferred",
		"patient_id", patientID,
		"from_hospital_id", from,
		"to_hospital_id", to,
		"reason", reason,
		"operator", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, event)
	return updated, nil
}

func (s *Service) transfer(ctx context.Context, r *models.LocationRecord, from, to domain.HospitalID, reason, actor string, now time.Time) error {
	if err := r.CanTransfer(from, to); err != nil {
		return err
	}
	r.ApplyTransfer(to, s.self, now)
	t := &models.Transfer{
		ID:            uuid.New(),
		PatientID:     r.PatientID,
		FromHospital:  from,
		ToHospital:    to,
		Reason:        reason,
		TransferredBy: actor,
		TransferredAt: now,
	}
	if err := s.store.AppendTransfer(ctx, t); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log transfer")
	}
	return nil
}

// UpdateStatus changes a patient's clinical status, including terminal
// outcomes. Terminal records reject further changes.
func (s *Service) UpdateStatus(ctx context.Context, patientID domain.PatientID, status models.ClinicalStatus) (*models.LocationRecord, error) {
	ctx, span := tracer.Start(ctx, "directory.UpdateStatus")
	defer span.End()

	if _, err := domain.ParsePatientID(patientID.String()); err != nil {
		return nil, err
	}
	var (
		updated *models.LocationRecord
		event   *models.LocationEvent
	)
	err := s.tx.RunInTx(patientKey(ctx, patientID), func(txCtx context.Context) error {
		current, err := s.find(txCtx, patientID)
		if err != nil {
			return err
		}
		if err := current.CanChangeStatus(status); err != nil {
			return err
		}
		updated = current
		if !current.ApplyStatus(status, s.self, requestcontext.Now(txCtx)) {
			return nil
		}
		if err := s.persist(txCtx, current); err != nil {
			return err
		}
		event, err = s.journal(txCtx, models.NewLocationEvent(models.EventStatusChanged, current, ""))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if event != nil {
		s.metrics.IncrementWrite(string(models.OutcomeStatusUpdated))
		s.logger.InfoContext(ctx, "clinical_status_updated",
			"patient_id", patientID,
			"clinical_status", status,
			"operator", requestcontext.OperatorID(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.emit(ctx, event)
	return updated, nil
}

// GetLocation returns the patient's current record.
func (s *Service) GetLocation(ctx context.Context, patientID domain.PatientID) (*models.LocationRecord, error) {
	return s.find(ctx, patientID)
}

// ListTransfers returns the patient's transfer log, oldest first.
func (s *Service) ListTransfers(ctx context.Context, patientID domain.PatientID) ([]*models.Transfer, error) {
	if _, err := s.find(ctx, patientID); err != nil {
		return nil, err
	}
	list, err := s.store.ListTransfers(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transfers")
	}
	return list, nil
}

// BroadcastMissingPerson asks every reachable active hospital to look for
// patientID. Repeating the same description adds no rows for hospitals
// already asked.
func (s *Service) BroadcastMissingPerson(ctx context.Context, patientID domain.PatientID, description string, photoID *domain.PhotoID) (*models.BroadcastResult, error) {
	return s.broadcast(ctx, models.BroadcastMissingPerson, patientID, description, photoID)
}

// BroadcastUnidentified asks every reachable active hospital to help
// identify an unknown patient held here.
func (s *Service) BroadcastUnidentified(ctx context.Context, patientID domain.PatientID, description string, photoID *domain.PhotoID) (*models.BroadcastResult, error) {
	return s.broadcast(ctx, models.BroadcastNeedIdentification, patientID, description, photoID)
}

func (s *Service) broadcast(ctx context.Context, kind models.BroadcastType, patientID domain.PatientID, description string, photoID *domain.PhotoID) (*models.BroadcastResult, error) {
	ctx, span := tracer.Start(ctx, "directory.Broadcast")
	defer span.End()

	if _, err := domain.ParsePatientID(patientID.String()); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "description is required")
	}
	if len(description) > maxDescriptionLength {
		return nil, dErrors.Newf(dErrors.CodeValidation, "description must be %d characters or less", maxDescriptionLength)
	}
	targets, err := s.hospitals.FanOutTargets(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.BroadcastResult{DescriptionHash: DescriptionHash(description)}
	var created []*models.Broadcast
	err = s.tx.RunInTx(tx.WithShardKey(ctx, "broadcast:"+patientID.String()), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		for _, h := range targets {
			b := &models.Broadcast{
				ID:               domain.BroadcastID(uuid.New()),
				HospitalID:       h.ID,
				PatientID:        patientID,
				Type:             kind,
				Message:          kind.Message(patientID, description),
				PhotoID:          photoID,
				DescriptionHash:  result.DescriptionHash,
				OriginHospitalID: s.self,
				CreatedAt:        now,
			}
			err := s.store.CreateBroadcast(txCtx, b)
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				existing, err := s.store.FindBroadcast(txCtx, h.ID, patientID, kind, result.DescriptionHash)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load broadcast")
				}
				result.Broadcasts = append(result.Broadcasts, existing)
				continue
			}
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create broadcast")
			}
			if err := s.outbox.Write(txCtx, outbox.EntityHospitalBroadcast, b.ID.String(), b); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue broadcast for sync")
			}
			result.Broadcasts = append(result.Broadcasts, b)
			created = append(created, b)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result.Created = len(created)
	s.metrics.AddBroadcasts(string(kind), result.Created)
	s.logger.InfoContext(ctx, "broadcast_sent",
		"patient_id", patientID,
		"broadcast_type", kind,
		"targets", len(targets),
		"created", result.Created,
		"operator", requestcontext.OperatorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	for _, b := range created {
		s.relayBroadcast(ctx, b)
	}
	return result, nil
}

// ListBroadcasts returns broadcasts addressed to hospitalID.
func (s *Service) ListBroadcasts(ctx context.Context, hospitalID domain.HospitalID) ([]*models.Broadcast, error) {
	list, err := s.store.ListBroadcasts(ctx, hospitalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list broadcasts")
	}
	return list, nil
}

// HospitalDistribution reports every known hospital with its current
// (non-terminal) patient count.
func (s *Service) HospitalDistribution(ctx context.Context) ([]hmodels.Distribution, error) {
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountCurrentByHospital(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count patients")
	}
	out := make([]hmodels.Distribution, 0, len(hospitals))
	for _, h := range hospitals {
		out = append(out, hmodels.Distribution{
			HospitalID:      h.ID,
			Name:            h.Name,
			Location:        h.Location,
			Capacity:        h.Capacity,
			Active:          h.Active,
			SyncStatus:      h.SyncStatus,
			CurrentPatients: counts[h.ID],
		})
	}
	return out, nil
}

// PatientsAtHospital lists patients whose current record is at hospitalID.
// Terminal records are included only when includeTerminal is set.
func (s *Service) PatientsAtHospital(ctx context.Context, hospitalID domain.HospitalID, includeTerminal bool) ([]*models.LocationRecord, error) {
	if _, err := s.hospitals.Get(ctx, hospitalID); err != nil {
		return nil, err
	}
	records, err := s.store.ListByHospital(ctx, hospitalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list patients")
	}
	if includeTerminal {
		return records, nil
	}
	current := records[:0]
	for _, r := range records {
		if !r.IsTerminal() {
			current = append(current, r)
		}
	}
	return current, nil
}

// ApplyReplicatedLocation merges a record written at a peer. Replicated
// merges are not re-queued to the outbox.
func (s *Service) ApplyReplicatedLocation(ctx context.Context, remote *models.LocationRecord) error {
	if remote == nil || remote.PatientID.IsZero() || remote.HospitalID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "replicated location missing patient or hospital")
	}
	var (
		event     *models.LocationEvent
		conflicts []merge.Conflict
	)
	err := s.tx.RunInTx(patientKey(ctx, remote.PatientID), func(txCtx context.Context) error {
		local, err := s.store.FindByPatient(txCtx, remote.PatientID)
		if errors.Is(err, sentinel.ErrNotFound) {
			r := remote.Clone()
			if err := s.store.Save(txCtx, r); err != nil {
				return err
			}
			event, err = s.journal(txCtx, models.NewLocationEvent(models.EventRelocated, r, ""))
			return err
		}
		if err != nil {
			return err
		}
		res := merge.Location(local, remote)
		conflicts = res.Conflicts
		if len(res.Conflicts) > 0 && s.reconciler != nil {
			now := requestcontext.Now(txCtx)
			items := make([]*reconcile.Item, 0, len(res.Conflicts))
			for _, c := range res.Conflicts {
				items = append(items, reconcile.NewItem(string(outbox.EntityPatientLocation), remote.PatientID.String(),
					c.Field, c.LocalValue, c.RemoteValue, c.LocalOrigin, c.RemoteOrigin, now))
			}
			if err := s.reconciler.Enqueue(txCtx, items...); err != nil {
				return err
			}
		}
		if len(res.Changed) == 0 {
			return nil
		}
		if err := s.store.Save(txCtx, res.Record); err != nil {
			return err
		}
		if res.LocationChanged {
			event, err = s.journal(txCtx, models.NewLocationEvent(models.EventRelocated, res.Record, local.HospitalID))
		}
		return err
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to merge replicated location")
	}
	switch {
	case len(conflicts) > 0:
		s.metrics.IncrementMerge("conflict")
		s.logger.WarnContext(ctx, "sync_conflict_queued",
			"patient_id", remote.PatientID,
			"fields", merge.Describe(conflicts),
			"remote_origin", remote.OriginHospitalID,
		)
	case event != nil:
		s.metrics.IncrementMerge("applied")
	default:
		s.metrics.IncrementMerge("unchanged")
	}
	s.emit(ctx, event)
	return nil
}

// ApplyReplicatedBroadcast stores a broadcast created at a peer. The
// origin already relayed it.
func (s *Service) ApplyReplicatedBroadcast(ctx context.Context, b *models.Broadcast) error {
	if b == nil || !b.Type.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "replicated broadcast is invalid")
	}
	err := s.store.CreateBroadcast(ctx, b)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store replicated broadcast")
	}
	return nil
}

func (s *Service) persist(ctx context.Context, r *models.LocationRecord) error {
	if err := s.store.Save(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeHospitalNotRegistered, "hospital %s is not registered", r.HospitalID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save location")
	}
	if err := s.outbox.Write(ctx, outbox.EntityPatientLocation, r.PatientID.String(), r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue location for sync")
	}
	return nil
}

func (s *Service) find(ctx context.Context, patientID domain.PatientID) (*models.LocationRecord, error) {
	r, err := s.store.FindByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodePatientUnknown, "patient %s has no location record", patientID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load location")
	}
	return r, nil
}

func (s *Service) actor(ctx context.Context, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return requestcontext.OperatorID(ctx)
}

// journal records event as pending in the same transaction as the write
// that produced it, so a crash or notifier failure after commit leaves it
// for ReplayPending.
func (s *Service) journal(ctx context.Context, e models.LocationEvent) (*models.LocationEvent, error) {
	if s.notifier == nil {
		return &e, nil
	}
	if err := s.store.SavePendingEvent(ctx, &e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to journal location event")
	}
	return &e, nil
}

// emit hands a committed event to the notifier and clears it from the
// journal. Failures are logged and left for ReplayPending.
func (s *Service) emit(ctx context.Context, event *models.LocationEvent) {
	if event == nil || s.notifier == nil {
		return
	}
	if err := s.deliver(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "location_notification_failed",
			"patient_id", event.PatientID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

func (s *Service) deliver(ctx context.Context, event *models.LocationEvent) error {
	if err := s.notifier.OnLocationRecorded(ctx, *event); err != nil {
		return err
	}
	if err := s.store.DeletePendingEvent(ctx, event.EventID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear journaled event")
	}
	return nil
}

// ReplayPending redelivers journaled events the notifier has not yet
// accepted, oldest first. The notifier is idempotent per event id, so a
// replay of an event that was partly handled is safe. It returns how many
// events were delivered.
func (s *Service) ReplayPending(ctx context.Context, limit int) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	pending, err := s.store.ListPendingEvents(ctx, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list journaled events")
	}
	delivered := 0
	var errs []error
	for _, event := range pending {
		if err := s.deliver(ctx, event); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		s.logger.InfoContext(ctx, "location_events_replayed",
			"delivered", delivered,
			"remaining", len(pending)-delivered,
		)
	}
	return delivered, errors.Join(errs...)
}

// RunReplay calls ReplayPending every interval until ctx is done.
func (s *Service) RunReplay(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.ReplayPending(ctx, replayBatchSize); err != nil {
			s.logger.WarnContext(ctx, "location_event_replay_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) relayBroadcast(ctx context.Context, b *models.Broadcast) {
	if s.relay == nil {
		return
	}
	if err := s.relay.Relay(ctx, b); err != nil {
		s.logger.WarnContext(ctx, "broadcast_relay_failed",
			"broadcast_id", b.ID,
			"target_hospital_id", b.HospitalID,
			"error", err,
		)
	}
}

// DescriptionHash is the hex BLAKE2b-256 digest of the normalized
// description.
func DescriptionHash(description string) string {
	sum := blake2b.Sum256([]byte(pstrings.NormalizeText(description)))
	return hex.EncodeToString(sum[:])
}

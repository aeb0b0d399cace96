// Package engine turns committed directory events into deduplicated family
// notification rows. Its job ends when a row is durably queued; delivery
// belongs to the dispatch worker.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"reunite/internal/demographics"
	dmodels "reunite/internal/directory/models"
	fmodels "reunite/internal/family/models"
	hmodels "reunite/internal/hospital/models"
	"reunite/internal/notify/metrics"
	"reunite/internal/notify/models"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/sentinel"
	"reunite/pkg/platform/tx"
	"reunite/pkg/requestcontext"
)

var tracer = otel.Tracer("reunite/notify")

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error)
	FindByKey(ctx context.Context, key string) (*models.Notification, error)
	ListByPatient(ctx context.Context, patientID domain.PatientID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID, at time.Time) error
	UpdateState(ctx context.Context, n *models.Notification) error
}

// Locations reads current directory records.
type Locations interface {
	FindByPatient(ctx context.Context, patientID domain.PatientID) (*dmodels.LocationRecord, error)
}

// Relatives reads family graph edges.
type Relatives interface {
	EdgesOf(ctx context.Context, patientID domain.PatientID) ([]*fmodels.Relationship, error)
}

type Hospitals interface {
	Get(ctx context.Context, id domain.HospitalID) (*hmodels.Hospital, error)
	IsFanOutTarget(ctx context.Context, id domain.HospitalID) bool
}

type Outbox interface {
	Write(ctx context.Context, entityType outbox.EntityType, entityID string, payload any) error
}

// Queue hands rows this hospital owns to the dispatch worker.
type Queue interface {
	Push(ctx context.Context, id domain.NotificationID) error
}

// statusTypes maps terminal outcomes to the notification sent to contacts.
var statusTypes = map[dmodels.ClinicalStatus]models.Type{
	dmodels.StatusDeceased:   models.TypePatientDeceased,
	dmodels.StatusDischarged: models.TypePatientDischarged,
	dmodels.StatusReunified:  models.TypePatientFound,
}

type Engine struct {
	store        Store
	locations    Locations
	relatives    Relatives
	demographics demographics.Service
	hospitals    Hospitals
	outbox       Outbox
	queue        Queue
	self         domain.HospitalID
	region       string
	tx           tx.Runner
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithTx(runner tx.Runner) Option {
	return func(e *Engine) {
		e.tx = runner
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithQueue(q Queue) Option {
	return func(e *Engine) {
		e.queue = q
	}
}

// WithDefaultRegion sets the CLDR region used to parse contact numbers
// written without a country code.
func WithDefaultRegion(region string) Option {
	return func(e *Engine) {
		e.region = region
	}
}

func New(store Store, locations Locations, relatives Relatives, demo demographics.Service, hospitals Hospitals, ob Outbox, self domain.HospitalID, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		locations:    locations,
		relatives:    relatives,
		demographics: demo,
		hospitals:    hospitals,
		outbox:       ob,
		self:         self,
		region:       defaultRegion,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tx == nil {
		e.tx = tx.NewShardedRunner()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// OnLocationRecorded fans a directory event out to contacts and relatives.
// Invoking it again for the same event creates nothing new.
//
// Contact notifications are produced only by the hospital that made the
// write; peers learn about them through replication. Nearby rows are
// produced by the writer and by each hospital that owns one of them.
func (e *Engine) OnLocationRecorded(ctx context.Context, event dmodels.LocationEvent) error {
	ctx, span := tracer.Start(ctx, "notify.OnLocationRecorded")
	defer span.End()
	span.SetAttributes(
		attribute.String("patient_id", event.PatientID.String()),
		attribute.String("event_kind", string(event.Kind)),
	)

	local := event.Origin == e.self
	var errs []error
	switch event.Kind {
	case dmodels.EventIdentified:
		if local {
			errs = append(errs, e.notifyContacts(ctx, event, models.TypePatientIdentified))
		}
		errs = append(errs, e.checkFamilyNearby(ctx, event))
	case dmodels.EventTransferred:
		if local {
			errs = append(errs, e.notifyContacts(ctx, event, models.TypePatientTransferred))
		}
		errs = append(errs, e.checkFamilyNearby(ctx, event))
	case dmodels.EventStatusChanged:
		if typ, ok := statusTypes[event.ClinicalStatus]; ok && local {
			errs = append(errs, e.notifyContacts(ctx, event, typ))
		}
	case dmodels.EventRelocated:
		errs = append(errs, e.checkFamilyNearby(ctx, event))
	}
	return errors.Join(errs...)
}

func (e *Engine) notifyContacts(ctx context.Context, event dmodels.LocationEvent, typ models.Type) error {
	contacts, err := e.demographics.Contacts(ctx, event.PatientID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load contacts")
	}
	if len(contacts) == 0 {
		return nil
	}
	data := models.MessageData{
		PatientName:      demographics.DisplayName(ctx, e.demographics, event.PatientID),
		HospitalName:     e.hospitalName(ctx, event.HospitalID),
		PreviousHospital: e.hospitalName(ctx, event.PreviousHospitalID),
	}
	message := typ.Message(data)

	var errs []error
	for _, c := range contacts {
		channel, recipient, ok := e.route(c, typ)
		if !ok {
			e.logger.WarnContext(ctx, "contact_unreachable", "patient_id", event.PatientID, "contact_id", c.ID)
			continue
		}
		ref := c.ID
		if ref == "" {
			ref = recipient
		}
		_, err := e.create(ctx, models.Draft{
			PatientID:  event.PatientID,
			ContactRef: ref,
			Type:       typ,
			Channel:    channel,
			Recipient:  recipient,
			Message:    message,
			EventID:    event.EventID,
			Owner:      e.self,
		})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// checkFamilyNearby emits one FAMILY_NEARBY row to each side of every edge
// whose relative is currently at a different hospital.
func (e *Engine) checkFamilyNearby(ctx context.Context, event dmodels.LocationEvent) error {
	if event.ClinicalStatus.IsTerminal() {
		return nil
	}
	edges, err := e.relatives.EdgesOf(ctx, event.PatientID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationships")
	}
	var errs []error
	for _, edge := range edges {
		relative := edge.RelativeOf(event.PatientID)
		subject := side{patientID: event.PatientID, hospitalID: event.HospitalID}
		errs = append(errs, e.nearbyPair(ctx, subject, relative, event.EventID, event.Origin == e.self))
	}
	return errors.Join(errs...)
}

// OnRelationshipLinked runs the nearby check for a newly linked pair.
func (e *Engine) OnRelationshipLinked(ctx context.Context, r *fmodels.Relationship) error {
	loc, err := e.locations.FindByPatient(ctx, r.PatientA)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load location")
	}
	if loc.ClinicalStatus.IsTerminal() {
		return nil
	}
	subject := side{patientID: r.PatientA, hospitalID: loc.HospitalID}
	eventID := domain.DeriveEventID("family_link", r.Key())
	return e.nearbyPair(ctx, subject, r.RelativeOf(r.PatientA), eventID, true)
}

type side struct {
	patientID  domain.PatientID
	hospitalID domain.HospitalID
}

// nearbyPair creates the two rows for subject and relative. When produce is
// false only rows owned by this hospital are created.
func (e *Engine) nearbyPair(ctx context.Context, subject side, relative fmodels.Relative, eventID domain.EventID, produce bool) error {
	loc, err := e.locations.FindByPatient(ctx, relative.PatientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relative location")
	}
	if loc.ClinicalStatus.IsTerminal() || loc.HospitalID == subject.hospitalID {
		return nil
	}
	// Offline or inactive hospitals cannot act on a nearby alert.
	if !e.hospitals.IsFanOutTarget(ctx, loc.HospitalID) || !e.hospitals.IsFanOutTarget(ctx, subject.hospitalID) {
		return nil
	}
	other := side{patientID: relative.PatientID, hospitalID: loc.HospitalID}

	subjectName := demographics.DisplayName(ctx, e.demographics, subject.patientID)
	relativeName := demographics.DisplayName(ctx, e.demographics, other.patientID)

	drafts := []models.Draft{
		e.nearbyDraft(subject, other, subjectName, relativeName, relative.Label, e.hospitalName(ctx, other.hospitalID), eventID),
		e.nearbyDraft(other, subject, relativeName, subjectName, relative.Label.Inverse(), e.hospitalName(ctx, subject.hospitalID), eventID),
	}
	var errs []error
	for _, d := range drafts {
		if !produce && d.Owner != e.self {
			continue
		}
		_, err := e.create(ctx, d)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// nearbyDraft tells to's hospital that to's relative is at about's hospital.
// label is what about is to to.
func (e *Engine) nearbyDraft(to, about side, toName, aboutName string, label fmodels.Label, aboutHospital string, eventID domain.EventID) models.Draft {
	return models.Draft{
		PatientID:  to.patientID,
		ContactRef: about.patientID.String(),
		Type:       models.TypeFamilyNearby,
		Channel:    models.TypeFamilyNearby.DefaultChannel(),
		Recipient:  to.hospitalID.String(),
		Message: models.TypeFamilyNearby.Message(models.MessageData{
			PatientName:   toName,
			RelativeName:  aboutName,
			RelativeLabel: string(label),
			HospitalName:  aboutHospital,
		}),
		EventID: eventID,
		Owner:   to.hospitalID,
	}
}

// create persists a row unless its idempotency key already exists and
// reports whether it was new.
func (e *Engine) create(ctx context.Context, d models.Draft) (bool, error) {
	n := models.NewNotification(d, requestcontext.Now(ctx))
	err := e.tx.RunInTx(tx.WithShardKey(ctx, "notification:"+n.IdempotencyKey), func(txCtx context.Context) error {
		if err := e.store.Create(txCtx, n); err != nil {
			return err
		}
		return e.outbox.Write(txCtx, outbox.EntityFamilyNotification, n.ID.String(), n)
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		e.metrics.IncrementDeduplicated()
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue notification")
	}

	e.metrics.IncrementCreated(string(n.Type))
	e.logger.InfoContext(ctx, "notification_queued",
		"notification_id", n.ID,
		"patient_id", n.PatientID,
		"type", n.Type,
		"channel", n.Channel,
		"owner_hospital_id", n.OriginHospitalID,
	)
	e.enqueue(ctx, n)
	return true, nil
}

func (e *Engine) enqueue(ctx context.Context, n *models.Notification) {
	if e.queue == nil || n.OriginHospitalID != e.self || n.Status != models.StatusPending {
		return
	}
	// The dispatch sweep picks up rows the queue missed.
	if err := e.queue.Push(ctx, n.ID); err != nil {
		e.logger.WarnContext(ctx, "notification_enqueue_failed", "notification_id", n.ID, "error", err)
	}
}

// MarkRead flags a notification as read by its recipient.
func (e *Engine) MarkRead(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	var out *models.Notification
	err := e.tx.RunInTx(tx.WithShardKey(ctx, "notification:"+id.String()), func(txCtx context.Context) error {
		if err := e.store.MarkRead(txCtx, id, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		n, err := e.store.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		out = n
		return e.outbox.Write(txCtx, outbox.EntityFamilyNotification, n.ID.String(), n)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	return out, nil
}

// ListForPatient returns every notification about patientID.
func (e *Engine) ListForPatient(ctx context.Context, patientID domain.PatientID) ([]*models.Notification, error) {
	rows, err := e.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return rows, nil
}

// ApplyReplicated stores a row produced by a peer, or folds its delivery
// and read flags into the local copy.
func (e *Engine) ApplyReplicated(ctx context.Context, remote *models.Notification) error {
	if remote == nil || !remote.Type.IsValid() || !remote.Channel.IsValid() || remote.IdempotencyKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "malformed replicated notification")
	}
	var created bool
	err := e.tx.RunInTx(tx.WithShardKey(ctx, "notification:"+remote.IdempotencyKey), func(txCtx context.Context) error {
		err := e.store.Create(txCtx, remote)
		if err == nil {
			created = true
			return nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return err
		}
		local, err := e.store.FindByKey(txCtx, remote.IdempotencyKey)
		if err != nil {
			return err
		}
		if !local.MergeFrom(remote) {
			return nil
		}
		return e.store.UpdateState(txCtx, local)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply replicated notification")
	}
	if created {
		e.enqueue(ctx, remote)
	}
	return nil
}

func (e *Engine) hospitalName(ctx context.Context, id domain.HospitalID) string {
	if id == "" {
		return "another hospital"
	}
	h, err := e.hospitals.Get(ctx, id)
	if err != nil || h.Name == "" {
		return id.String()
	}
	return h.Name
}

// Package outbox holds the per-hospital queue of writes awaiting propagation
// to the hub. Every replicated local write lands here in the same
// transaction as the write itself.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reunite/pkg/domain"
	"reunite/pkg/requestcontext"
)

// Status is the delivery state of an outbox entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusAcked   Status = "acked"
	StatusFailed  Status = "failed"
)

var validStatuses = map[Status]bool{
	StatusPending: true,
	StatusSent:    true,
	StatusAcked:   true,
	StatusFailed:  true,
}

func (s Status) IsValid() bool { return validStatuses[s] }

// EntityType names what an entry carries.
type EntityType string

const (
	EntityHospital           EntityType = "hospital"
	EntityHeartbeat          EntityType = "hospital_heartbeat"
	EntityPatientPhoto       EntityType = "patient_photo"
	EntityPatientLocation    EntityType = "patient_location"
	EntityFamilyRelationship EntityType = "family_relationship"
	EntityFamilyNotification EntityType = "family_notification"
	EntityHospitalBroadcast  EntityType = "hospital_broadcast"
)

var validEntityTypes = map[EntityType]bool{
	EntityHospital:           true,
	EntityHeartbeat:          true,
	EntityPatientPhoto:       true,
	EntityPatientLocation:    true,
	EntityFamilyRelationship: true,
	EntityFamilyNotification: true,
	EntityHospitalBroadcast:  true,
}

func (t EntityType) IsValid() bool { return validEntityTypes[t] }

// Entry is one replicated write. Clock is the origin's write time at
// microsecond granularity; together with Origin it orders writes per node.
type Entry struct {
	ID            domain.OutboxEntryID `json:"id"`
	Origin        domain.HospitalID    `json:"origin_hospital_id"`
	EntityType    EntityType           `json:"entity_type"`
	EntityID      string               `json:"entity_id"`
	Payload       json.RawMessage      `json:"payload"`
	Clock         time.Time            `json:"clock"`
	Status        Status               `json:"-"`
	RetryCount    int                  `json:"-"`
	NextAttemptAt time.Time            `json:"-"`
	SentAt        *time.Time           `json:"-"`
	LastError     string               `json:"-"`
	CreatedAt     time.Time            `json:"-"`
}

// NewEntry builds a pending entry for payload.
func NewEntry(origin domain.HospitalID, entityType EntityType, entityID string, payload any, now time.Time) (*Entry, error) {
	if !entityType.IsValid() {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", entityType, err)
	}
	return &Entry{
		ID:            domain.OutboxEntryID(uuid.New()),
		Origin:        origin,
		EntityType:    entityType,
		EntityID:      entityID,
		Payload:       raw,
		Clock:         now,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// Store persists outbox entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Entry, error)
	MarkSent(ctx context.Context, ids []domain.OutboxEntryID, at time.Time) error
	MarkAcked(ctx context.Context, id domain.OutboxEntryID) error
	MarkRetry(ctx context.Context, id domain.OutboxEntryID, retryCount int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id domain.OutboxEntryID, lastErr string) error
	ListUnackedSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// Writer stamps entries with the local hospital and appends them.
// Services hold a Writer; it joins the caller's transaction through ctx.
type Writer struct {
	store  Store
	origin domain.HospitalID
}

func NewWriter(store Store, origin domain.HospitalID) *Writer {
	return &Writer{store: store, origin: origin}
}

// Write appends a pending entry for a local write.
func (w *Writer) Write(ctx context.Context, entityType EntityType, entityID string, payload any) error {
	entry, err := NewEntry(w.origin, entityType, entityID, payload, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	return w.store.Append(ctx, entry)
}

// Origin is the hospital this writer stamps on entries.
func (w *Writer) Origin() domain.HospitalID {
	return w.origin
}

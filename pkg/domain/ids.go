// Package domain holds identifier primitives shared across bounded contexts.
//
// Patient and hospital identifiers come from outside the network (triage tags,
// deployment rosters) and are validated strings. Identifiers minted by this
// system are typed UUIDs so they cannot be mixed up at compile time.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "reunite/pkg/domain-errors"
)

const maxExternalIDLength = 64

var externalIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// PatientID identifies a patient across all hospitals. Disaster triage often
// assigns tag numbers before a name is known, so no format beyond the
// character set is assumed.
type PatientID string

// HospitalID identifies a field hospital in the network.
type HospitalID string

// ParsePatientID validates a patient identifier at a trust boundary.
func ParsePatientID(s string) (PatientID, error) {
	v, err := parseExternalID("patient_id", s)
	return PatientID(v), err
}

// ParseHospitalID validates a hospital identifier at a trust boundary.
func ParseHospitalID(s string) (HospitalID, error) {
	v, err := parseExternalID("hospital_id", s)
	return HospitalID(v), err
}

func parseExternalID(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	if len(s) > maxExternalIDLength {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "%s must be %d characters or less", field, maxExternalIDLength)
	}
	if !externalIDPattern.MatchString(s) {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "%s contains invalid characters", field)
	}
	return s, nil
}

func (id PatientID) String() string  { return string(id) }
func (id HospitalID) String() string { return string(id) }

// IsZero reports whether the identifier is unset.
func (id PatientID) IsZero() bool  { return id == "" }
func (id HospitalID) IsZero() bool { return id == "" }

type (
	PhotoID          uuid.UUID
	MatchID          uuid.UUID
	VerificationID   uuid.UUID
	NotificationID   uuid.UUID
	BroadcastID      uuid.UUID
	OutboxEntryID    uuid.UUID
	ReconciliationID uuid.UUID
	EventID          uuid.UUID
)

func (id PhotoID) String() string          { return uuid.UUID(id).String() }
func (id MatchID) String() string          { return uuid.UUID(id).String() }
func (id VerificationID) String() string   { return uuid.UUID(id).String() }
func (id NotificationID) String() string   { return uuid.UUID(id).String() }
func (id BroadcastID) String() string      { return uuid.UUID(id).String() }
func (id OutboxEntryID) String() string    { return uuid.UUID(id).String() }
func (id ReconciliationID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string          { return uuid.UUID(id).String() }

func (id PhotoID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed UUIDs serialize as strings in JSON payloads.
func (id PhotoID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id MatchID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id VerificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BroadcastID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id OutboxEntryID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ReconciliationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *PhotoID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MatchID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *VerificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BroadcastID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OutboxEntryID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReconciliationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// ParsePhotoID parses a photo identifier from external input.
func ParsePhotoID(s string) (PhotoID, error) {
	u, err := parseUUID("photo_id", s)
	return PhotoID(u), err
}

// ParseMatchID parses a search match identifier from external input.
func ParseMatchID(s string) (MatchID, error) {
	u, err := parseUUID("match_id", s)
	return MatchID(u), err
}

// ParseNotificationID parses a notification identifier from external input.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID("notification_id", s)
	return NotificationID(u), err
}

func parseUUID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", field)
	}
	return u, nil
}

// eventNamespace scopes deterministic event ids.
var eventNamespace = uuid.MustParse("6f1d2a5e-8c1b-4f43-9a59-2f6c1de0b7a4")

// DeriveEventID builds a deterministic event id from its parts, so replaying
// the same write (locally or from a peer) always yields the same id.
func DeriveEventID(parts ...string) EventID {
	return EventID(uuid.NewSHA1(eventNamespace, []byte(strings.Join(parts, "|"))))
}

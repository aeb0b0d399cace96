package models

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"reunite/pkg/domain"
)

// Type is a closed set of notification kinds. Each kind has a row in the
// handler table; adding a kind without one is caught by IsValid.
type Type string

const (
	TypePatientIdentified  Type = "PATIENT_IDENTIFIED"
	TypePatientTransferred Type = "PATIENT_TRANSFERRED"
	TypeFamilyNearby       Type = "FAMILY_NEARBY"
	TypePatientFound       Type = "PATIENT_FOUND"
	TypePatientDischarged  Type = "PATIENT_DISCHARGED"
	TypePatientDeceased    Type = "PATIENT_DECEASED"
)

// Channel is how a notification reaches its recipient.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelRadio Channel = "radio"
)

var validChannels = map[Channel]bool{
	ChannelSMS:   true,
	ChannelEmail: true,
	ChannelRadio: true,
}

func (c Channel) IsValid() bool { return validChannels[c] }

// MessageData carries the names a template may use.
type MessageData struct {
	PatientName      string
	HospitalName     string
	PreviousHospital string
	RelativeName     string
	RelativeLabel    string
}

type handler struct {
	channel Channel
	format  func(MessageData) string
}

var handlers = map[Type]handler{
	TypePatientIdentified: {ChannelSMS, func(d MessageData) string {
		return d.PatientName + " has been identified and is being cared for at " + d.HospitalName + "."
	}},
	TypePatientTransferred: {ChannelSMS, func(d MessageData) string {
		return d.PatientName + " has been transferred from " + d.PreviousHospital + " to " + d.HospitalName + "."
	}},
	TypeFamilyNearby: {ChannelRadio, func(d MessageData) string {
		return "Family nearby: " + d.PatientName + "'s " + d.RelativeLabel + " " + d.RelativeName + " is at " + d.HospitalName + "."
	}},
	TypePatientFound: {ChannelSMS, func(d MessageData) string {
		return d.PatientName + " has been reunified with family at " + d.HospitalName + "."
	}},
	TypePatientDischarged: {ChannelSMS, func(d MessageData) string {
		return d.PatientName + " has been discharged from " + d.HospitalName + "."
	}},
	TypePatientDeceased: {ChannelSMS, func(d MessageData) string {
		return "We are sorry to inform you that " + d.PatientName + " has died at " + d.HospitalName + ". Please contact the hospital."
	}},
}

func (t Type) IsValid() bool {
	_, ok := handlers[t]
	return ok
}

// DefaultChannel is the channel used when the recipient has no preference.
func (t Type) DefaultChannel() Channel { return handlers[t].channel }

// Message renders the template for t.
func (t Type) Message(d MessageData) string {
	h, ok := handlers[t]
	if !ok {
		return ""
	}
	return h.format(d)
}

// Status is the delivery state of a notification row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Notification is a write-once family notification. Only Status, Delivered,
// Read and the retry bookkeeping change after creation.
type Notification struct {
	ID             domain.NotificationID `json:"id"`
	IdempotencyKey string                `json:"idempotency_key"`
	PatientID      domain.PatientID      `json:"patient_id"`
	// ContactRef is the contact id, or the relative's patient id for
	// FAMILY_NEARBY rows.
	ContactRef string         `json:"contact_ref"`
	Type       Type           `json:"notification_type"`
	Message    string         `json:"message"`
	Channel    Channel        `json:"channel"`
	Recipient  string         `json:"recipient"`
	EventID    domain.EventID `json:"event_id"`
	// OriginHospitalID is the hospital responsible for delivering the row.
	OriginHospitalID domain.HospitalID `json:"origin_hospital_id"`
	Status           Status            `json:"status"`
	Delivered        bool              `json:"delivered"`
	Read             bool              `json:"read"`
	Attempts         int               `json:"attempts"`
	LastError        string            `json:"last_error,omitempty"`
	NextAttemptAt    time.Time         `json:"next_attempt_at"`
	SentAt           *time.Time        `json:"sent_at,omitempty"`
	ReadAt           *time.Time        `json:"read_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Draft is what the engine decides to send before it becomes a row.
type Draft struct {
	PatientID  domain.PatientID
	ContactRef string
	Type       Type
	Channel    Channel
	Recipient  string
	Message    string
	EventID    domain.EventID
	Owner      domain.HospitalID
}

// NewNotification builds a pending row from d.
func NewNotification(d Draft, now time.Time) *Notification {
	return &Notification{
		ID:               domain.NotificationID(uuid.New()),
		IdempotencyKey:   IdempotencyKey(d.PatientID, d.Type, d.ContactRef, d.EventID),
		PatientID:        d.PatientID,
		ContactRef:       d.ContactRef,
		Type:             d.Type,
		Message:          d.Message,
		Channel:          d.Channel,
		Recipient:        d.Recipient,
		EventID:          d.EventID,
		OriginHospitalID: d.Owner,
		Status:           StatusPending,
		NextAttemptAt:    now,
		CreatedAt:        now,
	}
}

// IdempotencyKey derives the dedup key for (patient, type, recipient, event).
// Every node computes the same key for the same fact.
func IdempotencyKey(patientID domain.PatientID, t Type, contactRef string, eventID domain.EventID) string {
	sum := blake2b.Sum256([]byte(strings.Join([]string{patientID.String(), string(t), contactRef, eventID.String()}, "|")))
	return hex.EncodeToString(sum[:])
}

// IsDue reports whether the row should be attempted at now.
func (n *Notification) IsDue(now time.Time) bool {
	return n.Status == StatusPending && !n.NextAttemptAt.After(now)
}

// MergeFrom folds a replicated copy into n. Flags only move forward.
func (n *Notification) MergeFrom(other *Notification) bool {
	changed := false
	if other.Delivered && !n.Delivered {
		n.Delivered, n.Status, n.SentAt = true, StatusDelivered, other.SentAt
		changed = true
	}
	if other.Status == StatusFailed && n.Status == StatusPending {
		n.Status, n.LastError = StatusFailed, other.LastError
		changed = true
	}
	if other.Read && !n.Read {
		n.Read, n.ReadAt = true, other.ReadAt
		changed = true
	}
	return changed
}

func (n *Notification) Clone() *Notification {
	cp := *n
	return &cp
}

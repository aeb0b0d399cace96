package models

import (
	"time"

	"reunite/pkg/domain"
)

// EventKind is what a directory write did to a patient.
type EventKind string

const (
	EventIdentified    EventKind = "identified"
	EventTransferred   EventKind = "transferred"
	EventStatusChanged EventKind = "status_changed"
	// EventRelocated is a location learned from a peer by replication.
	EventRelocated EventKind = "relocated"
)

// LocationEvent is handed to the notification engine after a directory
// write commits. EventID depends only on the record state the event
// describes, so every node that observes the same write derives the same id.
type LocationEvent struct {
	EventID            domain.EventID    `json:"event_id"`
	Kind               EventKind         `json:"kind"`
	PatientID          domain.PatientID  `json:"patient_id"`
	HospitalID         domain.HospitalID `json:"hospital_id"`
	PreviousHospitalID domain.HospitalID `json:"previous_hospital_id,omitempty"`
	ClinicalStatus     ClinicalStatus    `json:"clinical_status"`
	// Origin is the hospital whose write produced the event.
	Origin     domain.HospitalID `json:"origin"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// IsLocationChange reports whether the event moved the patient.
func (e LocationEvent) IsLocationChange() bool {
	return e.Kind != EventStatusChanged
}

// NewLocationEvent builds an event from the record after the write.
func NewLocationEvent(kind EventKind, r *LocationRecord, previous domain.HospitalID) LocationEvent {
	e := LocationEvent{
		Kind:               kind,
		PatientID:          r.PatientID,
		HospitalID:         r.HospitalID,
		PreviousHospitalID: previous,
		ClinicalStatus:     r.ClinicalStatus,
		Origin:             r.OriginHospitalID,
		OccurredAt:         r.LocationUpdatedAt,
	}
	if kind == EventStatusChanged {
		e.OccurredAt = r.StatusUpdatedAt
		e.EventID = domain.DeriveEventID(r.PatientID.String(), "status", string(r.ClinicalStatus), e.OccurredAt.Format(time.RFC3339Nano))
		return e
	}
	e.EventID = domain.DeriveEventID(r.PatientID.String(), r.HospitalID.String(), e.OccurredAt.Format(time.RFC3339Nano))
	return e
}

// RecordOutcome describes how RecordLocation resolved.
type RecordOutcome string

const (
	OutcomeCreated       RecordOutcome = "created"
	OutcomeTransferred   RecordOutcome = "transferred"
	OutcomeStatusUpdated RecordOutcome = "status_updated"
	OutcomeUnchanged     RecordOutcome = "unchanged"
)

// RecordResult is the result of RecordLocation.
type RecordResult struct {
	Record  *LocationRecord `json:"record"`
	Outcome RecordOutcome   `json:"outcome"`
}

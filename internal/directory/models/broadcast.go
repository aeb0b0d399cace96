package models

import (
	"fmt"
	"time"

	"reunite/pkg/domain"
)

// BroadcastType is a closed set of hospital-wide alerts.
type BroadcastType string

const (
	BroadcastMissingPerson      BroadcastType = "MISSING_PERSON"
	BroadcastNeedIdentification BroadcastType = "NEED_IDENTIFICATION"
)

type broadcastHandler struct {
	format func(patientID domain.PatientID, description string) string
}

var broadcastHandlers = map[BroadcastType]broadcastHandler{
	BroadcastMissingPerson: {
		format: func(p domain.PatientID, d string) string {
			return fmt.Sprintf("Missing person %s: %s", p, d)
		},
	},
	BroadcastNeedIdentification: {
		format: func(p domain.PatientID, d string) string {
			return fmt.Sprintf("Unidentified patient %s needs identification: %s", p, d)
		},
	},
}

func (t BroadcastType) IsValid() bool {
	_, ok := broadcastHandlers[t]
	return ok
}

// Message renders the broadcast text.
func (t BroadcastType) Message(patientID domain.PatientID, description string) string {
	return broadcastHandlers[t].format(patientID, description)
}

// Broadcast is one alert row addressed to one hospital.
//
// Invariants:
//   - at most one row per (hospital, patient, type, description hash)
type Broadcast struct {
	ID               domain.BroadcastID `json:"id"`
	HospitalID       domain.HospitalID  `json:"hospital_id"`
	PatientID        domain.PatientID   `json:"patient_id"`
	Type             BroadcastType      `json:"broadcast_type"`
	Message          string             `json:"message"`
	PhotoID          *domain.PhotoID    `json:"photo_id,omitempty"`
	DescriptionHash  string             `json:"description_hash"`
	OriginHospitalID domain.HospitalID  `json:"origin_hospital_id"`
	CreatedAt        time.Time          `json:"created_at"`
}

// BroadcastResult reports a fan-out. Created counts rows written by this
// call; rows that already existed are not counted.
type BroadcastResult struct {
	DescriptionHash string       `json:"description_hash"`
	Broadcasts      []*Broadcast `json:"broadcasts"`
	Created         int          `json:"created"`
}

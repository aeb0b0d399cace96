package models

import (
	"time"

	"github.com/google/uuid"

	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

// ClinicalStatus is a patient's condition as recorded by the treating hospital.
type ClinicalStatus string

const (
	StatusCritical   ClinicalStatus = "critical"
	StatusSerious    ClinicalStatus = "serious"
	StatusStable     ClinicalStatus = "stable"
	StatusRecovering ClinicalStatus = "recovering"
	StatusUnknown    ClinicalStatus = "unknown"

	// Terminal outcomes. A record in one of these states stays queryable but
	// takes no further location or status changes.
	StatusDischarged ClinicalStatus = "discharged"
	StatusDeceased   ClinicalStatus = "deceased"
	StatusReunified  ClinicalStatus = "reunified"
)

var clinicalStatuses = map[ClinicalStatus]bool{
	StatusCritical:   false,
	StatusSerious:    false,
	StatusStable:     false,
	StatusRecovering: false,
	StatusUnknown:    false,
	StatusDischarged: true,
	StatusDeceased:   true,
	StatusReunified:  true,
}

func (s ClinicalStatus) IsValid() bool {
	_, ok := clinicalStatuses[s]
	return ok
}

func (s ClinicalStatus) IsTerminal() bool { return clinicalStatuses[s] }

// ParseClinicalStatus accepts an empty value as StatusUnknown.
func ParseClinicalStatus(s string) (ClinicalStatus, error) {
	if s == "" {
		return StatusUnknown, nil
	}
	status := ClinicalStatus(s)
	if !status.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid clinical status %q", s)
	}
	return status, nil
}

// LocationRecord is the directory's current-location row for one patient.
//
// Invariants:
//   - exactly one current record per patient
//   - TransferHistory lists every hospital the patient left, oldest first
//   - a terminal ClinicalStatus is never left again by a local write
type LocationRecord struct {
	PatientID           domain.PatientID    `json:"patient_id"`
	HospitalID          domain.HospitalID   `json:"hospital_id"`
	ClinicalStatus      ClinicalStatus      `json:"clinical_status"`
	IdentifiedBy        string              `json:"identified_by"`
	IdentifiedAt        time.Time           `json:"identified_at"`
	VerifyingHospitalID domain.HospitalID   `json:"verifying_hospital_id"`
	LocationUpdatedAt   time.Time           `json:"location_updated_at"`
	StatusUpdatedAt     time.Time           `json:"status_updated_at"`
	TransferHistory     []domain.HospitalID `json:"transfer_history"`
	OriginHospitalID    domain.HospitalID   `json:"origin_hospital_id"`
}

// NewLocationRecord creates the first record for a patient.
func NewLocationRecord(patientID domain.PatientID, hospitalID domain.HospitalID, identifiedBy string, status ClinicalStatus, origin domain.HospitalID, now time.Time) *LocationRecord {
	return &LocationRecord{
		PatientID:           patientID,
		HospitalID:          hospitalID,
		ClinicalStatus:      status,
		IdentifiedBy:        identifiedBy,
		IdentifiedAt:        now,
		VerifyingHospitalID: origin,
		LocationUpdatedAt:   now,
		StatusUpdatedAt:     now,
		TransferHistory:     []domain.HospitalID{},
		OriginHospitalID:    origin,
	}
}

func (r *LocationRecord) IsTerminal() bool { return r.ClinicalStatus.IsTerminal() }

// CanTransfer checks a move from from to to against the current record.
func (r *LocationRecord) CanTransfer(from, to domain.HospitalID) error {
	if r.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "patient %s is %s", r.PatientID, r.ClinicalStatus)
	}
	if r.HospitalID != from {
		return dErrors.Newf(dErrors.CodeConflict, "patient %s is at %s, not %s", r.PatientID, r.HospitalID, from)
	}
	if from == to {
		return dErrors.New(dErrors.CodeValidation, "transfer source and destination are the same hospital")
	}
	return nil
}

// ApplyTransfer moves the patient and appends the previous hospital to history.
func (r *LocationRecord) ApplyTransfer(to domain.HospitalID, origin domain.HospitalID, now time.Time) {
	r.TransferHistory = append(r.TransferHistory, r.HospitalID)
	r.HospitalID = to
	r.LocationUpdatedAt = now
	r.OriginHospitalID = origin
}

// CanChangeStatus rejects changes out of a terminal state.
func (r *LocationRecord) CanChangeStatus(status ClinicalStatus) error {
	if !status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid clinical status %q", status)
	}
	if r.IsTerminal() && status != r.ClinicalStatus {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "patient %s is %s", r.PatientID, r.ClinicalStatus)
	}
	return nil
}

// ApplyStatus sets the clinical status and reports whether it changed.
func (r *LocationRecord) ApplyStatus(status ClinicalStatus, origin domain.HospitalID, now time.Time) bool {
	if r.ClinicalStatus == status {
		return false
	}
	r.ClinicalStatus = status
	r.StatusUpdatedAt = now
	r.OriginHospitalID = origin
	return true
}

// Clone returns a deep copy.
func (r *LocationRecord) Clone() *LocationRecord {
	cp := *r
	cp.TransferHistory = append([]domain.HospitalID{}, r.TransferHistory...)
	return &cp
}

// Transfer is one row of the transfer log.
type Transfer struct {
	ID            uuid.UUID         `json:"id"`
	PatientID     domain.PatientID  `json:"patient_id"`
	FromHospital  domain.HospitalID `json:"from_hospital"`
	ToHospital    domain.HospitalID `json:"to_hospital"`
	Reason        string            `json:"reason"`
	TransferredBy string            `json:"transferred_by"`
	TransferredAt time.Time         `json:"transferred_at"`
}

// ReasonReidentified marks a transfer implied by recording a location at a
// different hospital.
const ReasonReidentified = "re-identified"

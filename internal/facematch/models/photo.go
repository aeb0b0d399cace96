package models

import (
	"time"

	"reunite/pkg/domain"
)

// Photo is an enrolled patient photograph. Photos are immutable; a
// correction is a new photo.
type Photo struct {
	ID          domain.PhotoID    `json:"id"`
	PatientID   domain.PatientID  `json:"patient_id"`
	HospitalID  domain.HospitalID `json:"hospital_id"`
	ContentHash string            `json:"content_hash"`
	Vector      Vector            `json:"vector"`
	IsPrimary   bool              `json:"is_primary"`
	Quality     float64           `json:"quality"`
	CapturedAt  time.Time         `json:"captured_at"`
}

// Scope limits a search to one hospital or the whole network.
type Scope struct {
	HospitalID domain.HospitalID
}

// ScopeAll searches local and replicated photos from every hospital.
var ScopeAll = Scope{}

func (s Scope) IsAll() bool { return s.HospitalID.IsZero() }

func (s Scope) Includes(h domain.HospitalID) bool {
	return s.IsAll() || s.HospitalID == h
}

// MatchResult is a search hit. It is a query response, not directory truth.
type MatchResult struct {
	MatchID    domain.MatchID    `json:"match_id"`
	PatientID  domain.PatientID  `json:"patient_id"`
	HospitalID domain.HospitalID `json:"hospital_id"`
	PhotoID    domain.PhotoID    `json:"photo_id"`
	Distance   float64           `json:"distance"`
	Confidence float64           `json:"confidence"`
	Tier       Tier              `json:"confidence_tier"`
}

// Verification confirms a match as a patient identity.
type Verification struct {
	ID         domain.VerificationID `json:"id"`
	MatchID    domain.MatchID        `json:"match_id"`
	PhotoID    domain.PhotoID        `json:"photo_id"`
	PatientID  domain.PatientID      `json:"patient_id"`
	HospitalID domain.HospitalID     `json:"hospital_id"`
	Confidence float64               `json:"confidence"`
	VerifiedBy string                `json:"verified_by"`
	VerifiedAt time.Time             `json:"verified_at"`
	Notes      string                `json:"notes"`
}

// EnrollResult reports an enrollment and any input-quality warning.
type EnrollResult struct {
	Photo     *Photo `json:"photo"`
	Duplicate bool   `json:"duplicate"`
	FaceCount int    `json:"face_count"`
	Warning   string `json:"warning,omitempty"`
}

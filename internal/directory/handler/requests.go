package handler

import (
	"reunite/internal/directory/models"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

// RecordLocationRequest is the body of POST /locations.
type RecordLocationRequest struct {
	PatientID      string `json:"patient_id" validate:"required,max=64"`
	HospitalID     string `json:"hospital_id" validate:"required,max=64"`
	IdentifiedBy   string `json:"identified_by" validate:"max=128"`
	ClinicalStatus string `json:"clinical_status"`
}

// TransferRequest is the body of POST /patients/{patientID}/transfer.
type TransferRequest struct {
	FromHospitalID string `json:"from_hospital_id" validate:"required,max=64"`
	ToHospitalID   string `json:"to_hospital_id" validate:"required,max=64"`
	Reason         string `json:"reason" validate:"max=512"`
}

// StatusRequest is the body of POST /patients/{patientID}/status.
type StatusRequest struct {
	ClinicalStatus string `json:"clinical_status" validate:"required"`
}

// BroadcastRequest is the body of the broadcast endpoints.
type BroadcastRequest struct {
	PatientID   string  `json:"patient_id" validate:"required,max=64"`
	Description string  `json:"description" validate:"required"`
	PhotoID     *string `json:"photo_id"`
}

func parseStatus(s string) (models.ClinicalStatus, error) {
	status := models.ClinicalStatus(s)
	if s != "" && !status.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid clinical status %q", s)
	}
	return status, nil
}

func (r *BroadcastRequest) photoID() (*domain.PhotoID, error) {
	if r.PhotoID == nil || *r.PhotoID == "" {
		return nil, nil
	}
	id, err := domain.ParsePhotoID(*r.PhotoID)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

package models

import (
	"strings"
	"time"

	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

// SyncStatus is a hospital's replication liveness as seen from this node.
type SyncStatus string

const (
	SyncStatusOnline  SyncStatus = "online"
	SyncStatusOffline SyncStatus = "offline"
	SyncStatusSyncing SyncStatus = "syncing"
)

var validSyncStatuses = map[SyncStatus]bool{
	SyncStatusOnline:  true,
	SyncStatusOffline: true,
	SyncStatusSyncing: true,
}

func (s SyncStatus) IsValid() bool { return validSyncStatuses[s] }

// Hospital is a field hospital in the network.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Capacity is non-negative
//   - Hospitals are deactivated, never deleted
//   - Only active hospitals that are not offline receive fan-out
type Hospital struct {
	ID                  domain.HospitalID `json:"id"`
	Name                string            `json:"name"`
	Location            string            `json:"location"`
	Capacity            int               `json:"capacity"`
	Active              bool              `json:"active"`
	SyncStatus          SyncStatus        `json:"sync_status"`
	LastSyncAt          *time.Time        `json:"last_sync_at,omitempty"`
	ConsecutiveFailures int               `json:"-"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NewHospital validates and builds an active, online hospital.
func NewHospital(id domain.HospitalID, name, location string, capacity int, now time.Time) (*Hospital, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "hospital name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "hospital name must be 128 characters or less")
	}
	if capacity < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "capacity cannot be negative")
	}
	return &Hospital{
		ID:         id,
		Name:       name,
		Location:   strings.TrimSpace(location),
		Capacity:   capacity,
		Active:     true,
		SyncStatus: SyncStatusOnline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsFanOutTarget reports whether broadcasts and nearby checks include this hospital.
func (h *Hospital) IsFanOutTarget() bool {
	return h.Active && h.SyncStatus != SyncStatusOffline
}

func (h *Hospital) CanDeactivate() error {
	if !h.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "hospital is already inactive")
	}
	return nil
}

func (h *Hospital) ApplyDeactivation(now time.Time) {
	h.Active = false
	h.UpdatedAt = now
}

func (h *Hospital) CanReactivate() error {
	if h.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "hospital is already active")
	}
	return nil
}

func (h *Hospital) ApplyReactivation(now time.Time) {
	h.Active = true
	h.UpdatedAt = now
}

// RecordContact marks the hospital reachable as of at.
func (h *Hospital) RecordContact(at time.Time) {
	h.SyncStatus = SyncStatusOnline
	h.ConsecutiveFailures = 0
	if h.LastSyncAt == nil || at.After(*h.LastSyncAt) {
		t := at
		h.LastSyncAt = &t
	}
}

// RecordMissedSync counts a missed sync round and reports whether the
// hospital just crossed into offline.
func (h *Hospital) RecordMissedSync(offlineAfter int) bool {
	h.ConsecutiveFailures++
	if h.SyncStatus != SyncStatusOffline && h.ConsecutiveFailures >= offlineAfter {
		h.SyncStatus = SyncStatusOffline
		return true
	}
	return false
}

// Distribution is one row of the hospital distribution report.
type Distribution struct {
	HospitalID      domain.HospitalID `json:"hospital_id"`
	Name            string            `json:"name"`
	Location        string            `json:"location"`
	Capacity        int               `json:"capacity"`
	Active          bool              `json:"active"`
	SyncStatus      SyncStatus        `json:"sync_status"`
	CurrentPatients int               `json:"current_patient_count"`
}

// RegisterRequest is the input for registering a hospital.
type RegisterRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
	Location string `json:"location" validate:"max=256"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

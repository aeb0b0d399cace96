package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestLocationRecord_Transfer(t *testing.T) {
	r := NewLocationRecord("P-1", "H1", "dr.a", StatusStable, "H1", t0)

	require.NoError(t, r.CanTransfer("H1", "H2"))
	r.ApplyTransfer("H2", "H1", t0.Add(time.Hour))

	assert.Equal(t, domain.HospitalID("H2"), r.HospitalID)
	assert.Equal(t, []domain.HospitalID{"H1"}, r.TransferHistory)
	assert.Equal(t, t0.Add(time.Hour), r.LocationUpdatedAt)

	err := r.CanTransfer("H1", "H3")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	err = r.CanTransfer("H2", "H2")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLocationRecord_TerminalStates(t *testing.T) {
	for _, status := range []ClinicalStatus{StatusDischarged, StatusDeceased, StatusReunified} {
		t.Run(string(status), func(t *testing.T) {
			r := NewLocationRecord("P-1", "H1", "dr.a", StatusStable, "H1", t0)
			require.NoError(t, r.CanChangeStatus(status))
			assert.True(t, r.ApplyStatus(status, "H1", t0))

			assert.True(t, dErrors.HasCode(r.CanChangeStatus(StatusStable), dErrors.CodeInvariantViolation))
			assert.True(t, dErrors.HasCode(r.CanTransfer("H1", "H2"), dErrors.CodeInvariantViolation))
			assert.NoError(t, r.CanChangeStatus(status), "repeating the terminal status is allowed")
		})
	}
}

func TestParseClinicalStatus(t *testing.T) {
	s, err := ParseClinicalStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, s)

	_, err = ParseClinicalStatus("zombie")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewLocationEvent_Deterministic(t *testing.T) {
	r := NewLocationRecord("P-1", "H1", "dr.a", StatusStable, "H1", t0)
	a := NewLocationEvent(EventIdentified, r, "")
	b := NewLocationEvent(EventIdentified, r.Clone(), "")
	assert.Equal(t, a.EventID, b.EventID)

	r.ApplyTransfer("H2", "H2", t0.Add(time.Minute))
	c := NewLocationEvent(EventTransferred, r, "H1")
	assert.NotEqual(t, a.EventID, c.EventID)
	assert.Equal(t, domain.HospitalID("H1"), c.PreviousHospitalID)
}

func TestBroadcastType_Handlers(t *testing.T) {
	assert.True(t, BroadcastMissingPerson.IsValid())
	assert.False(t, BroadcastType("PARTY").IsValid())
	assert.Contains(t, BroadcastMissingPerson.Message("P-1", "red jacket"), "red jacket")
	assert.Contains(t, BroadcastNeedIdentification.Message("P-9", "male, 40s"), "needs identification")
}

func TestNewLocationEvent_SameWriteSameIDAcrossKinds(t *testing.T) {
	r := NewLocationRecord("P-1", "H1", "dr.a", StatusStable, "H1", t0)
	local := NewLocationEvent(EventIdentified, r, "")
	replicated := NewLocationEvent(EventRelocated, r.Clone(), "")
	assert.Equal(t, local.EventID, replicated.EventID)
	assert.True(t, replicated.IsLocationChange())

	r.ApplyStatus(StatusDeceased, "H1", t0.Add(time.Hour))
	status := NewLocationEvent(EventStatusChanged, r, "")
	assert.NotEqual(t, local.EventID, status.EventID)
	assert.False(t, status.IsLocationChange())
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "reunite/pkg/domain-errors"
)

func TestNewHospital(t *testing.T) {
	now := time.Now()

	h, err := NewHospital("H1", "  Field Hospital A ", "Sector 4", 120, now)
	require.NoError(t, err)
	assert.Equal(t, "Field Hospital A", h.Name)
	assert.True(t, h.Active)
	assert.Equal(t, SyncStatusOnline, h.SyncStatus)

	_, err = NewHospital("H1", " ", "", 0, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewHospital("H1", "A", "", -1, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestHospital_ActivationTransitions(t *testing.T) {
	now := time.Now()
	h, err := NewHospital("H1", "A", "", 10, now)
	require.NoError(t, err)

	require.Error(t, h.CanReactivate())
	require.NoError(t, h.CanDeactivate())
	h.ApplyDeactivation(now)
	assert.False(t, h.IsFanOutTarget())
	require.Error(t, h.CanDeactivate())
	require.NoError(t, h.CanReactivate())
}

func TestHospital_Liveness(t *testing.T) {
	now := time.Now()
	h, err := NewHospital("H2", "B", "", 10, now)
	require.NoError(t, err)

	assert.False(t, h.RecordMissedSync(3))
	assert.False(t, h.RecordMissedSync(3))
	assert.True(t, h.RecordMissedSync(3), "third miss crosses into offline")
	assert.False(t, h.RecordMissedSync(3), "already offline")
	assert.False(t, h.IsFanOutTarget())

	h.RecordContact(now)
	assert.Equal(t, SyncStatusOnline, h.SyncStatus)
	assert.Zero(t, h.ConsecutiveFailures)
	assert.True(t, h.IsFanOutTarget())
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/pkg/domain"
)

func TestEveryTypeHasHandler(t *testing.T) {
	for _, typ := range []Type{TypePatientIdentified, TypePatientTransferred, TypeFamilyNearby, TypePatientFound, TypePatientDischarged, TypePatientDeceased} {
		assert.True(t, typ.IsValid(), typ)
		assert.True(t, typ.DefaultChannel().IsValid(), typ)
		assert.NotEmpty(t, typ.Message(MessageData{PatientName: "x", HospitalName: "y"}), typ)
	}
	assert.False(t, Type("PATIENT_LOST").IsValid())
	assert.Empty(t, Type("PATIENT_LOST").Message(MessageData{}))
}

func TestIdempotencyKey(t *testing.T) {
	event := domain.DeriveEventID("P-1", "H1", "t0")
	a := IdempotencyKey("P-1", TypePatientIdentified, "C-1", event)
	assert.Equal(t, a, IdempotencyKey("P-1", TypePatientIdentified, "C-1", event))
	assert.NotEqual(t, a, IdempotencyKey("P-1", TypePatientIdentified, "C-2", event))
	assert.NotEqual(t, a, IdempotencyKey("P-1", TypePatientTransferred, "C-1", event))
	assert.NotEqual(t, a, IdempotencyKey("P-1", TypePatientIdentified, "C-1", domain.DeriveEventID("other")))
}

func TestMergeFrom_FlagsOnlyMoveForward(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	local := NewNotification(Draft{PatientID: "P-1", Type: TypePatientIdentified, ContactRef: "C-1"}, now)

	remote := local.Clone()
	remote.Delivered, remote.Status, remote.SentAt = true, StatusDelivered, &now
	require.True(t, local.MergeFrom(remote))
	assert.True(t, local.Delivered)

	stale := local.Clone()
	stale.Delivered, stale.Status = false, StatusFailed
	assert.False(t, local.MergeFrom(stale))
	assert.Equal(t, StatusDelivered, local.Status)
}

func TestIsDue(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	n := NewNotification(Draft{PatientID: "P-1", Type: TypePatientIdentified}, now)
	assert.True(t, n.IsDue(now))
	n.NextAttemptAt = now.Add(time.Minute)
	assert.False(t, n.IsDue(now))
	n.Status = StatusDelivered
	assert.False(t, n.IsDue(now.Add(time.Hour)))
}

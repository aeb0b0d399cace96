package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

func TestNewRelationship_Canonical(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ab, err := NewRelationship("P-A", "P-B", LabelParent, "sw.a", now)
	require.NoError(t, err)
	ba, err := NewRelationship("P-B", "P-A", LabelChild, "sw.a", now)
	require.NoError(t, err)

	assert.Equal(t, ab.Key(), ba.Key())
	assert.Equal(t, ab.Label, ba.Label)

	assert.Equal(t, Relative{PatientID: "P-A", Label: LabelParent}, ab.RelativeOf("P-B"))
	assert.Equal(t, Relative{PatientID: "P-B", Label: LabelChild}, ab.RelativeOf("P-A"))
	assert.True(t, ab.Touches("P-A"))
	assert.False(t, ab.Touches(domain.PatientID("P-C")))
}

func TestNewRelationship_Rejects(t *testing.T) {
	_, err := NewRelationship("P-A", "P-A", LabelSibling, "", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewRelationship("P-A", "P-B", Label("rival"), "", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

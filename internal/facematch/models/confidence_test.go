package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		distance   float64
		confidence float64
		tier       Tier
		matched    bool
	}{
		{0.0, 1.0, TierDefinite, true},
		{0.05, 0.95, TierDefinite, true},
		{0.10, 0.90, TierVeryHigh, true},
		{0.15, 0.85, TierVeryHigh, true},
		{0.25, 0.75, TierHigh, true},
		{0.40, 0.60, TierModerate, true},
		{0.50, 0.50, TierLow, true},
		{0.60, 0.40, TierLow, true},
		{0.65, 0.35, TierLow, false},
	}
	for _, tt := range tests {
		c := Confidence(tt.distance)
		assert.InDelta(t, tt.confidence, c, 1e-9, "distance %.2f", tt.distance)
		assert.Equal(t, tt.tier, Classify(c), "distance %.2f", tt.distance)
		assert.Equal(t, tt.matched, WithinThreshold(tt.distance, DefaultDistanceThreshold), "distance %.2f", tt.distance)
	}
}

func TestConfidence_Clamped(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(1.7))
	assert.Equal(t, 1.0, Confidence(-0.1))
}

func TestVectorValidate(t *testing.T) {
	assert.Error(t, Vector{1, 2}.Validate())
	v := make(Vector, VectorSize)
	assert.NoError(t, v.Validate())
}

package models

import "math"

// DefaultDistanceThreshold is the largest distance still reported as a match.
const DefaultDistanceThreshold = 0.6

// DefaultMaxResults bounds a search response.
const DefaultMaxResults = 10

// distanceEpsilon absorbs float error when comparing against the threshold.
const distanceEpsilon = 1e-9

// Tier buckets a confidence score.
type Tier string

const (
	TierDefinite Tier = "DEFINITE"
	TierVeryHigh Tier = "VERY_HIGH"
	TierHigh     Tier = "HIGH"
	TierModerate Tier = "MODERATE"
	TierLow      Tier = "LOW"
)

// tierFloors is ordered from the highest floor down; the first floor the
// confidence reaches names its tier.
var tierFloors = []struct {
	floor float64
	tier  Tier
}{
	{0.95, TierDefinite},
	{0.85, TierVeryHigh},
	{0.75, TierHigh},
	{0.60, TierModerate},
}

// Confidence maps a distance to 1 - distance, clamped to [0,1] and rounded
// to four decimals so tier boundaries are exact.
func Confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return math.Round(c*10000) / 10000
}

// Classify returns the tier for a confidence score.
func Classify(confidence float64) Tier {
	for _, f := range tierFloors {
		if confidence >= f.floor {
			return f.tier
		}
	}
	return TierLow
}

// WithinThreshold reports whether distance is close enough to be a match.
func WithinThreshold(distance, threshold float64) bool {
	return distance <= threshold+distanceEpsilon
}

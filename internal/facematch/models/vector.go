package models

import (
	"math"

	dErrors "reunite/pkg/domain-errors"
)

// VectorSize is the length of a face embedding.
const VectorSize = 128

// Vector is a face embedding.
type Vector []float64

// Validate checks length and rejects NaN or infinite components.
func (v Vector) Validate() error {
	if len(v) != VectorSize {
		return dErrors.Newf(dErrors.CodeInvalidInput, "embedding must have %d components, got %d", VectorSize, len(v))
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return dErrors.New(dErrors.CodeInvalidInput, "embedding contains non-finite components")
		}
	}
	return nil
}

// Distance is the Euclidean distance between two embeddings of equal length.
func Distance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	cp := make(Vector, len(v))
	copy(cp, v)
	return cp
}

package models

import (
	"time"

	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

// Label says what PatientA is to PatientB.
type Label string

const (
	LabelParent   Label = "parent"
	LabelChild    Label = "child"
	LabelSibling  Label = "sibling"
	LabelSpouse   Label = "spouse"
	LabelGuardian Label = "guardian"
	LabelWard     Label = "ward"
	LabelRelative Label = "relative"
)

// inverse maps a label to what the other side is.
var inverse = map[Label]Label{
	LabelParent:   LabelChild,
	LabelChild:    LabelParent,
	LabelSibling:  LabelSibling,
	LabelSpouse:   LabelSpouse,
	LabelGuardian: LabelWard,
	LabelWard:     LabelGuardian,
	LabelRelative: LabelRelative,
}

func (l Label) IsValid() bool {
	_, ok := inverse[l]
	return ok
}

func (l Label) Inverse() Label { return inverse[l] }

// Relationship is an undirected family edge stored once, with PatientA
// ordered before PatientB.
type Relationship struct {
	PatientA   domain.PatientID `json:"patient_a"`
	PatientB   domain.PatientID `json:"patient_b"`
	Label      Label            `json:"label"`
	AssertedBy string           `json:"asserted_by"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewRelationship builds the canonical edge for "a is label of b".
func NewRelationship(a, b domain.PatientID, label Label, assertedBy string, now time.Time) (*Relationship, error) {
	if !label.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid relationship label %q", label)
	}
	if a == b {
		return nil, dErrors.New(dErrors.CodeValidation, "a patient cannot be related to themselves")
	}
	if a > b {
		a, b = b, a
		label = label.Inverse()
	}
	return &Relationship{PatientA: a, PatientB: b, Label: label, AssertedBy: assertedBy, CreatedAt: now}, nil
}

// Key identifies the edge regardless of direction.
func (r *Relationship) Key() string {
	return r.PatientA.String() + "|" + r.PatientB.String()
}

// Touches reports whether the edge has p on either end.
func (r *Relationship) Touches(p domain.PatientID) bool {
	return r.PatientA == p || r.PatientB == p
}

// Relative is the far end of an edge seen from one patient.
type Relative struct {
	PatientID domain.PatientID `json:"patient_id"`
	// Label is what the relative is to the patient asked about.
	Label Label `json:"label"`
}

// RelativeOf returns the other end of r as seen from p.
func (r *Relationship) RelativeOf(p domain.PatientID) Relative {
	if r.PatientA == p {
		return Relative{PatientID: r.PatientB, Label: r.Label.Inverse()}
	}
	return Relative{PatientID: r.PatientA, Label: r.Label}
}

// LinkRequest is the input for asserting a relationship.
type LinkRequest struct {
	PatientID  string `json:"patient_id" validate:"required,max=64"`
	RelativeID string `json:"relative_id" validate:"required,max=64"`
	// Label is what PatientID is to RelativeID.
	Label string `json:"label" validate:"required"`
}

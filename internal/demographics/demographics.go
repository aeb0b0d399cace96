// Package demographics resolves patients to display names and consented
// emergency contacts. The upstream service is best-effort: names are often
// unknown in disaster triage and the network keeps working without them.
package demographics

import (
	"context"
	"strings"

	"reunite/pkg/domain"
)

// Patient is what the demographics service knows about a patient.
type Patient struct {
	ID   domain.PatientID `json:"patient_id"`
	Name string           `json:"name"`
}

// DisplayName returns the patient's name or a triage placeholder.
func (p *Patient) DisplayName() string {
	if p == nil {
		return "An unidentified patient"
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "Patient " + p.ID.String()
}

// Contact is a consented emergency contact.
type Contact struct {
	ID           string `json:"contact_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Consented    bool   `json:"consented"`
}

// Service is the demographics port.
type Service interface {
	Lookup(ctx context.Context, patientID domain.PatientID) (*Patient, error)
	// Contacts returns consented contacts only.
	Contacts(ctx context.Context, patientID domain.PatientID) ([]Contact, error)
}

// DisplayName looks the patient up and falls back to a placeholder when the
// service fails or does not know the name.
func DisplayName(ctx context.Context, svc Service, patientID domain.PatientID) string {
	if svc == nil {
		return (&Patient{ID: patientID}).DisplayName()
	}
	p, err := svc.Lookup(ctx, patientID)
	if err != nil || p == nil {
		return (&Patient{ID: patientID}).DisplayName()
	}
	return p.DisplayName()
}

func consentedOnly(contacts []Contact) []Contact {
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.Consented {
			out = append(out, c)
		}
	}
	return out
}

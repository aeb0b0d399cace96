package demographics

import (
	"context"
	"fmt"
	"sync"

	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// InMemory is a demographics source for tests and disconnected hospitals.
type InMemory struct {
	mu       sync.RWMutex
	patients map[domain.PatientID]Patient
	contacts map[domain.PatientID][]Contact
}

func NewInMemory() *InMemory {
	return &InMemory{
		patients: make(map[domain.PatientID]Patient),
		contacts: make(map[domain.PatientID][]Contact),
	}
}

func (m *InMemory) PutPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *InMemory) PutContacts(patientID domain.PatientID, contacts ...Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[patientID] = append([]Contact(nil), contacts...)
}

func (m *InMemory) Lookup(_ context.Context, patientID domain.PatientID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", patientID, sentinel.ErrNotFound)
	}
	return &p, nil
}

func (m *InMemory) Contacts(_ context.Context, patientID domain.PatientID) ([]Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return consentedOnly(m.contacts[patientID]), nil
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reunite/internal/directory/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

type broadcastKey struct {
	hospital domain.HospitalID
	patient  domain.PatientID
	kind     models.BroadcastType
	hash     string
}

// InMemory holds location records, transfers and broadcasts in memory.
type InMemory struct {
	mu         sync.RWMutex
	records    map[domain.PatientID]*models.LocationRecord
	transfers  map[domain.PatientID][]*models.Transfer
	broadcasts map[broadcastKey]*models.Broadcast
	order      []broadcastKey
	pending    map[domain.EventID]*models.LocationEvent
	pendingSeq []domain.EventID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:    make(map[domain.PatientID]*models.LocationRecord),
		transfers:  make(map[domain.PatientID][]*models.Transfer),
		broadcasts: make(map[broadcastKey]*models.Broadcast),
		pending:    make(map[domain.EventID]*models.LocationEvent),
	}
}

func (s *InMemory) FindByPatient(_ context.Context, patientID domain.PatientID) (*models.LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[patientID]
	if !ok {
		return nil, fmt.Errorf("location for patient %s: %w", patientID, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *InMemory) Save(_ context.Context, r *models.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.PatientID] = r.Clone()
	return nil
}

func (s *InMemory) ListByHospital(_ context.Context, hospitalID domain.HospitalID) ([]*models.LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LocationRecord
	for _, r := range s.records {
		if r.HospitalID == hospitalID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}

// CountCurrentByHospital counts non-terminal records per hospital.
func (s *InMemory) CountCurrentByHospital(_ context.Context) (map[domain.HospitalID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.HospitalID]int)
	for _, r := range s.records {
		if !r.IsTerminal() {
			counts[r.HospitalID]++
		}
	}
	return counts, nil
}

func (s *InMemory) AppendTransfer(_ context.Context, t *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.transfers[t.PatientID] = append(s.transfers[t.PatientID], &cp)
	return nil
}

func (s *InMemory) ListTransfers(_ context.Context, patientID domain.PatientID) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Transfer, 0, len(s.transfers[patientID]))
	for _, t := range s.transfers[patientID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// CreateBroadcast stores b unless a row with the same hospital, patient,
// type and description hash exists, in which case it returns ErrAlreadyUsed.
func (s *InMemory) CreateBroadcast(_ context.Context, b *models.Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := broadcastKey{b.HospitalID, b.PatientID, b.Type, b.DescriptionHash}
	if _, ok := s.broadcasts[key]; ok {
		return fmt.Errorf("broadcast for %s at %s: %w", b.PatientID, b.HospitalID, sentinel.ErrAlreadyUsed)
	}
	cp := *b
	s.broadcasts[key] = &cp
	s.order = append(s.order, key)
	return nil
}

func (s *InMemory) FindBroadcast(_ context.Context, hospitalID domain.HospitalID, patientID domain.PatientID, kind models.BroadcastType, hash string) (*models.Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.broadcasts[broadcastKey{hospitalID, patientID, kind, hash}]
	if !ok {
		return nil, fmt.Errorf("broadcast for %s at %s: %w", patientID, hospitalID, sentinel.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// ListBroadcasts returns broadcasts addressed to hospitalID, oldest first.
func (s *InMemory) ListBroadcasts(_ context.Context, hospitalID domain.HospitalID) ([]*models.Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Broadcast
	for _, key := range s.order {
		if key.hospital == hospitalID {
			cp := *s.broadcasts[key]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// SavePendingEvent journals e. Saving an id that is already pending is a no-op.
func (s *InMemory) SavePendingEvent(_ context.Context, e *models.LocationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[e.EventID]; ok {
		return nil
	}
	cp := *e
	s.pending[e.EventID] = &cp
	s.pendingSeq = append(s.pendingSeq, e.EventID)
	return nil
}

func (s *InMemory) ListPendingEvents(_ context.Context, limit int) ([]*models.LocationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LocationEvent
	for _, id := range s.pendingSeq {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *s.pending[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) DeletePendingEvent(_ context.Context, id domain.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return nil
	}
	delete(s.pending, id)
	for i, seq := range s.pendingSeq {
		if seq == id {
			s.pendingSeq = append(s.pendingSeq[:i], s.pendingSeq[i+1:]...)
			break
		}
	}
	return nil
}

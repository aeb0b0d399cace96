package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reunite/internal/hospital/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// InMemory stores hospitals in memory for tests and development.
type InMemory struct {
	mu        sync.RWMutex
	hospitals map[domain.HospitalID]*models.Hospital
}

func NewInMemory() *InMemory {
	return &InMemory{hospitals: make(map[domain.HospitalID]*models.Hospital)}
}

func (s *InMemory) Create(_ context.Context, h *models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hospitals[h.ID]; ok {
		return fmt.Errorf("hospital %s: %w", h.ID, sentinel.ErrAlreadyUsed)
	}
	s.hospitals[h.ID] = clone(h)
	return nil
}

func (s *InMemory) Upsert(_ context.Context, h *models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[h.ID] = clone(h)
	return nil
}

func (s *InMemory) Update(_ context.Context, h *models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hospitals[h.ID]; !ok {
		return fmt.Errorf("hospital %s: %w", h.ID, sentinel.ErrNotFound)
	}
	s.hospitals[h.ID] = clone(h)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.HospitalID) (*models.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hospitals[id]
	if !ok {
		return nil, fmt.Errorf("hospital %s: %w", id, sentinel.ErrNotFound)
	}
	return clone(h), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Hospital, 0, len(s.hospitals))
	for _, h := range s.hospitals {
		out = append(out, clone(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func clone(h *models.Hospital) *models.Hospital {
	cp := *h
	if h.LastSyncAt != nil {
		t := *h.LastSyncAt
		cp.LastSyncAt = &t
	}
	return &cp
}

package store

import (
	"context"
	"sort"
	"sync"

	"reunite/internal/family/models"
	"reunite/pkg/domain"
)

// InMemory keeps an adjacency index so lookups touch only a patient's edges.
type InMemory struct {
	mu    sync.RWMutex
	edges map[string]*models.Relationship
	adj   map[domain.PatientID]map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		edges: make(map[string]*models.Relationship),
		adj:   make(map[domain.PatientID]map[string]struct{}),
	}
}

// Link stores r and reports whether it was new. An existing edge keeps its
// original label.
func (s *InMemory) Link(_ context.Context, r *models.Relationship) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Key()
	if _, ok := s.edges[key]; ok {
		return false, nil
	}
	cp := *r
	s.edges[key] = &cp
	for _, p := range []domain.PatientID{r.PatientA, r.PatientB} {
		if s.adj[p] == nil {
			s.adj[p] = make(map[string]struct{})
		}
		s.adj[p][key] = struct{}{}
	}
	return true, nil
}

// EdgesOf returns every edge touching patientID, ordered by key.
func (s *InMemory) EdgesOf(_ context.Context, patientID domain.PatientID) ([]*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Relationship, 0, len(s.adj[patientID]))
	for key := range s.adj[patientID] {
		cp := *s.edges[key]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

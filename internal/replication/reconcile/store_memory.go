package reconcile

import (
	"context"
	"fmt"
	"sync"

	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// InMemory keeps the queue in insertion order.
type InMemory struct {
	mu    sync.RWMutex
	items []*Item
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Enqueue(_ context.Context, items ...*Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		cp := *it
		s.items = append(s.items, &cp)
	}
	return nil
}

func (s *InMemory) ListUnresolved(_ context.Context, limit int) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Item
	for _, it := range s.items {
		if it.Resolved {
			continue
		}
		cp := *it
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) Resolve(_ context.Context, id domain.ReconciliationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			it.Resolved = true
			return nil
		}
	}
	return fmt.Errorf("reconciliation item %s: %w", id, sentinel.ErrNotFound)
}

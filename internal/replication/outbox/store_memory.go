package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// InMemory is an outbox for tests and single-node development.
type InMemory struct {
	mu      sync.RWMutex
	entries map[domain.OutboxEntryID]*Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[domain.OutboxEntryID]*Entry)}
}

func (s *InMemory) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return fmt.Errorf("outbox entry %s: %w", entry.ID, sentinel.ErrConflict)
	}
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *InMemory) ListDue(_ context.Context, now time.Time, limit int) ([]*Entry, error) {
	return s.collect(limit, func(e *Entry) bool {
		return e.Status == StatusPending && !e.NextAttemptAt.After(now)
	}), nil
}

func (s *InMemory) ListUnackedSentBefore(_ context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	return s.collect(limit, func(e *Entry) bool {
		return e.Status == StatusSent && e.SentAt != nil && e.SentAt.Before(cutoff)
	}), nil
}

func (s *InMemory) collect(limit int, keep func(*Entry) bool) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0)
	for _, e := range s.entries {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clock.Equal(out[j].Clock) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Clock.Before(out[j].Clock)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *InMemory) MarkSent(_ context.Context, ids []domain.OutboxEntryID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && e.Status == StatusPending {
			sentAt := at
			e.Status = StatusSent
			e.SentAt = &sentAt
		}
	}
	return nil
}

func (s *InMemory) MarkAcked(_ context.Context, id domain.OutboxEntryID) error {
	return s.update(id, func(e *Entry) {
		e.Status = StatusAcked
		e.LastError = ""
	})
}

func (s *InMemory) MarkRetry(_ context.Context, id domain.OutboxEntryID, retryCount int, next time.Time, lastErr string) error {
	return s.update(id, func(e *Entry) {
		e.Status = StatusPending
		e.RetryCount = retryCount
		e.NextAttemptAt = next
		e.LastError = lastErr
		e.SentAt = nil
	})
}

func (s *InMemory) MarkFailed(_ context.Context, id domain.OutboxEntryID, lastErr string) error {
	return s.update(id, func(e *Entry) {
		e.Status = StatusFailed
		e.LastError = lastErr
	})
}

func (s *InMemory) update(id domain.OutboxEntryID, fn func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("outbox entry %s: %w", id, sentinel.ErrNotFound)
	}
	fn(e)
	return nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(validStatuses))
	for _, e := range s.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// Get returns a copy of one entry.
func (s *InMemory) Get(id domain.OutboxEntryID) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// All returns every entry ordered by clock.
func (s *InMemory) All() []*Entry {
	return s.collect(0, func(*Entry) bool { return true })
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reunite/internal/notify/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// InMemory is a notification store for tests and single-node runs.
type InMemory struct {
	mu    sync.RWMutex
	rows  map[domain.NotificationID]*models.Notification
	byKey map[string]domain.NotificationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		rows:  make(map[domain.NotificationID]*models.Notification),
		byKey: make(map[string]domain.NotificationID),
	}
}

func (s *InMemory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[n.IdempotencyKey]; ok {
		return fmt.Errorf("notification %s: %w", n.IdempotencyKey, sentinel.ErrAlreadyUsed)
	}
	s.rows[n.ID] = n.Clone()
	s.byKey[n.IdempotencyKey] = n.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", id, sentinel.ErrNotFound)
	}
	return n.Clone(), nil
}

func (s *InMemory) FindByKey(_ context.Context, key string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", key, sentinel.ErrNotFound)
	}
	return s.rows[id].Clone(), nil
}

// ListDue returns pending rows owned by owner whose next attempt is due,
// oldest first.
func (s *InMemory) ListDue(_ context.Context, owner domain.HospitalID, now time.Time, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.rows {
		if n.OriginHospitalID == owner && n.IsDue(now) {
			out = append(out, n.Clone())
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) ListByPatient(_ context.Context, patientID domain.PatientID) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.rows {
		if n.PatientID == patientID {
			out = append(out, n.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemory) MarkDelivered(_ context.Context, id domain.NotificationID, at time.Time) error {
	return s.update(id, func(n *models.Notification) {
		n.Status, n.Delivered, n.SentAt = models.StatusDelivered, true, &at
		n.Attempts++
		n.LastError = ""
	})
}

func (s *InMemory) MarkRetry(_ context.Context, id domain.NotificationID, attempts int, next time.Time, lastErr string) error {
	return s.update(id, func(n *models.Notification) {
		n.Attempts, n.NextAttemptAt, n.LastError = attempts, next, lastErr
	})
}

func (s *InMemory) MarkFailed(_ context.Context, id domain.NotificationID, attempts int, lastErr string) error {
	return s.update(id, func(n *models.Notification) {
		n.Status, n.Attempts, n.LastError = models.StatusFailed, attempts, lastErr
	})
}

func (s *InMemory) MarkRead(_ context.Context, id domain.NotificationID, at time.Time) error {
	return s.update(id, func(n *models.Notification) {
		if !n.Read {
			n.Read, n.ReadAt = true, &at
		}
	})
}

// UpdateState persists the mutable fields of n.
func (s *InMemory) UpdateState(_ context.Context, n *models.Notification) error {
	return s.update(n.ID, func(cur *models.Notification) {
		cur.Status, cur.Delivered, cur.Read = n.Status, n.Delivered, n.Read
		cur.SentAt, cur.ReadAt, cur.LastError = n.SentAt, n.ReadAt, n.LastError
	})
}

func (s *InMemory) update(id domain.NotificationID, fn func(*models.Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, sentinel.ErrNotFound)
	}
	fn(n)
	return nil
}

// All returns every row, oldest first.
func (s *InMemory) All() []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Notification, 0, len(s.rows))
	for _, n := range s.rows {
		out = append(out, n.Clone())
	}
	sortByCreated(out)
	return out
}

func sortByCreated(rows []*models.Notification) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].IdempotencyKey < rows[j].IdempotencyKey
	})
}

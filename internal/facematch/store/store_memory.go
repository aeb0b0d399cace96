package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reunite/internal/facematch/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

type hashKey struct {
	patient domain.PatientID
	hash    string
}

// InMemory stores photos and verifications in memory.
type InMemory struct {
	mu            sync.RWMutex
	photos        map[domain.PhotoID]*models.Photo
	byHash        map[hashKey]domain.PhotoID
	verifications []*models.Verification
}

func NewInMemory() *InMemory {
	return &InMemory{
		photos: make(map[domain.PhotoID]*models.Photo),
		byHash: make(map[hashKey]domain.PhotoID),
	}
}

// Save stores a photo. A photo with the same id is a no-op; the same bytes
// for the same patient under a different id is ErrAlreadyUsed.
func (s *InMemory) Save(_ context.Context, p *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[p.ID]; ok {
		return nil
	}
	key := hashKey{p.PatientID, p.ContentHash}
	if _, ok := s.byHash[key]; ok {
		return fmt.Errorf("photo for patient %s: %w", p.PatientID, sentinel.ErrAlreadyUsed)
	}
	s.photos[p.ID] = clone(p)
	s.byHash[key] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.PhotoID) (*models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", id, sentinel.ErrNotFound)
	}
	return clone(p), nil
}

func (s *InMemory) FindByHash(_ context.Context, patientID domain.PatientID, hash string) (*models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hashKey{patientID, hash}]
	if !ok {
		return nil, fmt.Errorf("photo for patient %s: %w", patientID, sentinel.ErrNotFound)
	}
	return clone(s.photos[id]), nil
}

func (s *InMemory) ListByPatient(_ context.Context, patientID domain.PatientID) ([]*models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Photo
	for _, p := range s.photos {
		if p.PatientID == patientID {
			out = append(out, clone(p))
		}
	}
	sortPhotos(out)
	return out, nil
}

func (s *InMemory) All(_ context.Context) ([]*models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

func (s *InMemory) SaveVerification(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.verifications = append(s.verifications, &cp)
	return nil
}

// Verifications returns recorded verifications in insertion order.
func (s *InMemory) Verifications() []*models.Verification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Verification(nil), s.verifications...)
}

// sortPhotos orders primary photos first, then newest first.
func sortPhotos(photos []*models.Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		if photos[i].IsPrimary != photos[j].IsPrimary {
			return photos[i].IsPrimary
		}
		return photos[i].CapturedAt.After(photos[j].CapturedAt)
	})
}

func clone(p *models.Photo) *models.Photo {
	cp := *p
	cp.Vector = p.Vector.Clone()
	return &cp
}

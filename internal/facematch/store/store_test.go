package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/internal/facematch/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

func newPhoto(patient domain.PatientID, hash string, primary bool, at time.Time) *models.Photo {
	return &models.Photo{
		ID:          domain.PhotoID(uuid.New()),
		PatientID:   patient,
		HospitalID:  "H1",
		ContentHash: hash,
		Vector:      make(models.Vector, models.VectorSize),
		IsPrimary:   primary,
		CapturedAt:  at,
	}
}

func TestInMemory_DedupAndOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	old := newPhoto("P-1", "h1", false, t0)
	primary := newPhoto("P-1", "h2", true, t0.Add(-time.Hour))
	recent := newPhoto("P-1", "h3", false, t0.Add(time.Hour))
	for _, p := range []*models.Photo{old, primary, recent} {
		require.NoError(t, s.Save(ctx, p))
	}

	require.NoError(t, s.Save(ctx, old), "same id is idempotent")
	err := s.Save(ctx, newPhoto("P-1", "h1", false, t0))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	require.NoError(t, s.Save(ctx, newPhoto("P-2", "h1", false, t0)), "hash dedup is per patient")

	list, err := s.ListByPatient(ctx, "P-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, primary.ID, list[0].ID)
	assert.Equal(t, recent.ID, list[1].ID)
	assert.Equal(t, old.ID, list[2].ID)

	found, err := s.FindByHash(ctx, "P-1", "h3")
	require.NoError(t, err)
	assert.Equal(t, recent.ID, found.ID)

	_, err = s.FindByID(ctx, domain.PhotoID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_FindByHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	id := uuid.New()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "patient_id", "hospital_id", "content_hash", "vector", "is_primary", "quality", "captured_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM patient_photos WHERE patient_id = $1 AND content_hash = $2")).
		WithArgs("P-1", "abc").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.String(), "P-1", "H1", "abc", "{0.5,0.25}", true, 0.9, now))

	p, err := store.FindByHash(context.Background(), "P-1", "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoID(id), p.ID)
	assert.Equal(t, models.Vector{0.5, 0.25}, p.Vector)
	assert.True(t, p.IsPrimary)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDuplicateHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO patient_photos")).
		WillReturnError(&pqUniqueViolation)

	err = store.Save(context.Background(), newPhoto("P-1", "h", false, time.Now()))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

var pqUniqueViolation = pq.Error{Code: "23505"}

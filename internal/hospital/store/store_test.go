package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"reunite/internal/hospital/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) newHospital(id domain.HospitalID) *models.Hospital {
	h, err := models.NewHospital(id, "Field "+id.String(), "", 50, time.Now())
	s.Require().NoError(err)
	return h
}

func (s *InMemorySuite) TestCreateAndFind() {
	s.Require().NoError(s.store.Create(s.ctx, s.newHospital("H1")))

	s.Run("duplicate id is rejected", func() {
		err := s.store.Create(s.ctx, s.newHospital("H1"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, "H9")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		h, err := s.store.FindByID(s.ctx, "H1")
		s.Require().NoError(err)
		h.Active = false
		again, err := s.store.FindByID(s.ctx, "H1")
		s.Require().NoError(err)
		s.True(again.Active)
	})
}

func (s *InMemorySuite) TestListOrdersByID() {
	s.Require().NoError(s.store.Create(s.ctx, s.newHospital("H2")))
	s.Require().NoError(s.store.Upsert(s.ctx, s.newHospital("H1")))

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(domain.HospitalID("H1"), list[0].ID)
}

func (s *InMemorySuite) TestUpdateUnknown() {
	err := s.store.Update(s.ctx, s.newHospital("H3"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	h, err := models.NewHospital("H1", "Field A", "", 10, time.Now())
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO hospitals")).WillReturnError(&pq.Error{Code: "23505"})

	err = store.Create(context.Background(), h)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "name", "location", "capacity", "active", "sync_status", "last_sync_at",
		"consecutive_failures", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM hospitals WHERE id = $1")).WithArgs("H1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("H1", "Field A", "Sector 4", 10, true, "offline", now, 3, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM hospitals WHERE id = $1")).WithArgs("H9").
		WillReturnRows(sqlmock.NewRows(columns))

	h, err := store.FindByID(context.Background(), "H1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusOffline, h.SyncStatus)
	require.NotNil(t, h.LastSyncAt)
	assert.Equal(t, 3, h.ConsecutiveFailures)

	_, err = store.FindByID(context.Background(), "H9")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	h, err := models.NewHospital("H1", "Field A", "", 10, time.Now())
	require.NoError(t, err)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE hospitals")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Update(context.Background(), h), sentinel.ErrNotFound)
}

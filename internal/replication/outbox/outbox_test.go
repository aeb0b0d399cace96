package outbox

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"reunite/pkg/domain"
	"reunite/pkg/requestcontext"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *InMemorySuite) TestWriterStampsOrigin() {
	w := NewWriter(s.store, "H1")
	s.Require().NoError(w.Write(s.ctx, EntityPatientLocation, "P-1", map[string]string{"hospital_id": "H1"}))

	due, err := s.store.ListDue(s.ctx, s.now, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(domain.HospitalID("H1"), due[0].Origin)
	s.Equal(StatusPending, due[0].Status)
	s.Equal(s.now, due[0].Clock)
	s.JSONEq(`{"hospital_id":"H1"}`, string(due[0].Payload))
}

func (s *InMemorySuite) TestLifecycle() {
	e, err := NewEntry("H1", EntityPatientPhoto, "photo-1", struct{}{}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(s.ctx, e))

	s.Run("sent entries leave the due list", func() {
		s.Require().NoError(s.store.MarkSent(s.ctx, []domain.OutboxEntryID{e.ID}, s.now))
		due, err := s.store.ListDue(s.ctx, s.now, 10)
		s.Require().NoError(err)
		s.Empty(due)

		stale, err := s.store.ListUnackedSentBefore(s.ctx, s.now.Add(time.Minute), 10)
		s.Require().NoError(err)
		s.Len(stale, 1)
	})

	s.Run("retry returns entry to pending after backoff", func() {
		s.Require().NoError(s.store.MarkRetry(s.ctx, e.ID, 1, s.now.Add(time.Minute), "hub unreachable"))
		due, err := s.store.ListDue(s.ctx, s.now, 10)
		s.Require().NoError(err)
		s.Empty(due)
		due, err = s.store.ListDue(s.ctx, s.now.Add(time.Minute), 10)
		s.Require().NoError(err)
		s.Require().Len(due, 1)
		s.Equal(1, due[0].RetryCount)
	})

	s.Run("acked", func() {
		s.Require().NoError(s.store.MarkAcked(s.ctx, e.ID))
		got, ok := s.store.Get(e.ID)
		s.Require().True(ok)
		s.Equal(StatusAcked, got.Status)
		counts, err := s.store.CountByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, counts[StatusAcked])
	})
}

func (s *InMemorySuite) TestRejectsUnknownEntityType() {
	_, err := NewEntry("H1", EntityType("patient_billing"), "x", nil, s.now)
	s.Error(err)
}

func TestPostgresStore_AppendUsesPayloadBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, err := NewEntry("H1", EntityHospital, "H1", map[string]any{"name": "Field A"}, now)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sync_outbox")).
		WithArgs(uuid.UUID(e.ID), "H1", "hospital", "H1", []byte(e.Payload), now, "pending", 0, now, nil, "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Append(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	payload, _ := json.Marshal(map[string]string{"k": "v"})
	rows := sqlmock.NewRows([]string{"id", "origin_hospital_id", "entity_type", "entity_id", "payload", "clock",
		"status", "retry_count", "next_attempt_at", "sent_at", "last_error", "created_at"}).
		AddRow(id.String(), "H1", "patient_location", "P-1", payload, now, "pending", 2, now, nil, "", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_outbox")).WithArgs(now, 50).WillReturnRows(rows)

	entries, err := store.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxEntryID(id), entries[0].ID)
	assert.Equal(t, EntityPatientLocation, entries[0].EntityType)
	assert.Equal(t, 2, entries[0].RetryCount)
	assert.Nil(t, entries[0].SentAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

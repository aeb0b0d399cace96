package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/internal/notify/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func draft(patient domain.PatientID, contact string, owner domain.HospitalID) models.Draft {
	return models.Draft{
		PatientID:  patient,
		ContactRef: contact,
		Type:       models.TypePatientIdentified,
		Channel:    models.ChannelSMS,
		Recipient:  "+27821234567",
		Message:    "hello",
		EventID:    domain.DeriveEventID(patient.String(), "H1"),
		Owner:      owner,
	}
}

func TestInMemory_CreateDedupesOnKey(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	first := models.NewNotification(draft("P-1", "C-1", "H1"), now)
	require.NoError(t, s.Create(ctx, first))

	again := models.NewNotification(draft("P-1", "C-1", "H1"), now.Add(time.Second))
	err := s.Create(ctx, again)
	assert.True(t, errors.Is(err, sentinel.ErrAlreadyUsed))

	found, err := s.FindByKey(ctx, again.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Len(t, s.All(), 1)
}

func TestInMemory_ListDueRespectsOwnerAndSchedule(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	mine := models.NewNotification(draft("P-1", "C-1", "H1"), now)
	theirs := models.NewNotification(draft("P-1", "C-2", "H2"), now)
	later := models.NewNotification(draft("P-1", "C-3", "H1"), now)
	for _, n := range []*models.Notification{mine, theirs, later} {
		require.NoError(t, s.Create(ctx, n))
	}
	require.NoError(t, s.MarkRetry(ctx, later.ID, 1, now.Add(time.Minute), "gateway down"))

	due, err := s.ListDue(ctx, "H1", now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, mine.ID, due[0].ID)

	require.NoError(t, s.MarkDelivered(ctx, mine.ID, now))
	due, err = s.ListDue(ctx, "H1", now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, later.ID, due[0].ID)

	require.NoError(t, s.MarkRead(ctx, mine.ID, now))
	got, err := s.FindByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.True(t, got.Delivered)
	assert.True(t, got.Read)
	assert.Equal(t, 1, got.Attempts)

	assert.True(t, errors.Is(s.MarkRead(ctx, domain.NotificationID{}, now), sentinel.ErrNotFound))
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO family_notifications")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.Create(context.Background(), models.NewNotification(draft("P-1", "C-1", "H1"), now))
	assert.True(t, errors.Is(err, sentinel.ErrAlreadyUsed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkFailedUnknownRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE family_notifications SET status = 'failed'")).
		WithArgs(sqlmock.AnyArg(), 5, "boom").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.MarkFailed(context.Background(), domain.NotificationID{}, 5, "boom")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

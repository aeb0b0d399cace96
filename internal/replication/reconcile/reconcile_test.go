package reconcile

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestInMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	a := NewItem("patient_location", "P-1", "hospital_id", "H1", "H2", "H1", "H2", now)
	b := NewItem("patient_location", "P-2", "clinical_status", "stable", "critical", "H1", "H3", now)
	require.NoError(t, s.Enqueue(ctx, a, b))

	open, err := s.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	require.NoError(t, s.Resolve(ctx, a.ID))
	open, err = s.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, b.ID, open[0].ID)

	err = s.Resolve(ctx, domain.ReconciliationID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_Resolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	id := domain.ReconciliationID(uuid.New())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reconciliation_queue SET resolved = TRUE")).
		WithArgs(uuid.UUID(id).String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.Resolve(context.Background(), id)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

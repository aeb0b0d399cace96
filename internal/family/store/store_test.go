package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/internal/family/models"
	"reunite/pkg/domain"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func edge(t *testing.T, a, b domain.PatientID, label models.Label) *models.Relationship {
	t.Helper()
	r, err := models.NewRelationship(a, b, label, "sw.a", now)
	require.NoError(t, err)
	return r
}

func TestInMemory_LinkIsIdempotentAndBidirectional(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	created, err := s.Link(ctx, edge(t, "P-A", "P-B", models.LabelParent))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Link(ctx, edge(t, "P-B", "P-A", models.LabelChild))
	require.NoError(t, err)
	assert.False(t, created)

	_, err = s.Link(ctx, edge(t, "P-A", "P-C", models.LabelParent))
	require.NoError(t, err)

	fromA, err := s.EdgesOf(ctx, "P-A")
	require.NoError(t, err)
	assert.Len(t, fromA, 2)

	fromB, err := s.EdgesOf(ctx, "P-B")
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, domain.PatientID("P-A"), fromB[0].RelativeOf("P-B").PatientID)

	none, err := s.EdgesOf(ctx, "P-Z")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRelationshipFromRecord(t *testing.T) {
	r := relationshipFromRecord(map[string]any{
		"a": "P-A", "b": "P-B", "label": "sibling", "by": "sw.a", "at": now.UnixMicro(),
	})
	assert.Equal(t, domain.PatientID("P-A"), r.PatientA)
	assert.Equal(t, models.LabelSibling, r.Label)
	assert.True(t, now.Equal(r.CreatedAt))
}

func TestPostgresStore_Link(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO family_relationships")).
		WithArgs("P-A", "P-B", "parent", "sw.a", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO family_relationships")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := store.Link(context.Background(), edge(t, "P-A", "P-B", models.LabelParent))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Link(context.Background(), edge(t, "P-A", "P-B", models.LabelParent))
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EdgesOf(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	rows := sqlmock.NewRows([]string{"patient_a", "patient_b", "label", "asserted_by", "created_at"}).
		AddRow("P-A", "P-B", "parent", "sw.a", now).
		AddRow("P-B", "P-C", "sibling", "sw.b", now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE patient_a = $1 OR patient_b = $1")).
		WithArgs("P-B").
		WillReturnRows(rows)

	edges, err := store.EdgesOf(context.Background(), "P-B")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, models.LabelParent, edges[0].Label)
	assert.Equal(t, domain.PatientID("P-C"), edges[1].RelativeOf("P-B").PatientID)
}

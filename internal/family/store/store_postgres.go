package store

import (
	"context"
	"database/sql"
	"fmt"

	"reunite/internal/family/models"
	"reunite/pkg/domain"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists relationships with one row per undirected edge.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Link(ctx context.Context, r *models.Relationship) (bool, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO family_relationships (patient_a, patient_b, label, asserted_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_a, patient_b) DO NOTHING
	`, r.PatientA.String(), r.PatientB.String(), string(r.Label), r.AssertedBy, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert relationship: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) EdgesOf(ctx context.Context, patientID domain.PatientID) ([]*models.Relationship, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT patient_a, patient_b, label, asserted_by, created_at
		FROM family_relationships
		WHERE patient_a = $1 OR patient_b = $1
		ORDER BY patient_a, patient_b
	`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()
	var out []*models.Relationship
	for rows.Next() {
		var (
			r           models.Relationship
			a, b, label string
		)
		if err := rows.Scan(&a, &b, &label, &r.AssertedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.PatientA = domain.PatientID(a)
		r.PatientB = domain.PatientID(b)
		r.Label = models.Label(label)
		out = append(out, &r)
	}
	return out, rows.Err()
}

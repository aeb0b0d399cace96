package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reunite/internal/hospital/models"
	"reunite/internal/platform/postgres"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists hospitals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const hospitalColumns = `id, name, location, capacity, active, sync_status, last_sync_at,
	consecutive_failures, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, h *models.Hospital) error {
	query := `INSERT INTO hospitals (` + hospitalColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, args(h)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("hospital %s: %w", h.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert hospital: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, h *models.Hospital) error {
	query := `
		INSERT INTO hospitals (` + hospitalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			capacity = EXCLUDED.capacity,
			active = EXCLUDED.active,
			sync_status = EXCLUDED.sync_status,
			last_sync_at = EXCLUDED.last_sync_at,
			consecutive_failures = EXCLUDED.consecutive_failures,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, args(h)...); err != nil {
		return fmt.Errorf("upsert hospital: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, h *models.Hospital) error {
	query := `
		UPDATE hospitals SET name = $2, location = $3, capacity = $4, active = $5, sync_status = $6,
			last_sync_at = $7, consecutive_failures = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		h.ID.String(), h.Name, h.Location, h.Capacity, h.Active, string(h.SyncStatus),
		h.LastSyncAt, h.ConsecutiveFailures, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update hospital: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("hospital %s: %w", h.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.HospitalID) (*models.Hospital, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id.String())
	h, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hospital %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find hospital: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Hospital, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+hospitalColumns+` FROM hospitals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()
	var out []*models.Hospital
	for rows.Next() {
		h, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Hospital, error) {
	var (
		h          models.Hospital
		id         string
		syncStatus string
		lastSync   sql.NullTime
	)
	if err := row.Scan(&id, &h.Name, &h.Location, &h.Capacity, &h.Active, &syncStatus, &lastSync,
		&h.ConsecutiveFailures, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.ID = domain.HospitalID(id)
	h.SyncStatus = models.SyncStatus(syncStatus)
	if lastSync.Valid {
		t := lastSync.Time
		h.LastSyncAt = &t
	}
	return &h, nil
}

func args(h *models.Hospital) []any {
	return []any{
		h.ID.String(), h.Name, h.Location, h.Capacity, h.Active, string(h.SyncStatus),
		h.LastSyncAt, h.ConsecutiveFailures, h.CreatedAt, h.UpdatedAt,
	}
}

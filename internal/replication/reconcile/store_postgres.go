package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists the queue in the reconciliation_queue table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const itemColumns = `id, entity_type, entity_id, field, local_value, remote_value,
	local_origin, remote_origin, observed_at, resolved`

func (s *PostgresStore) Enqueue(ctx context.Context, items ...*Item) error {
	conn := txcontext.Conn(ctx, s.db)
	for _, it := range items {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO reconciliation_queue (`+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, uuid.UUID(it.ID), it.EntityType, it.EntityID, it.Field, it.LocalValue, it.RemoteValue,
			it.LocalOrigin.String(), it.RemoteOrigin.String(), it.ObservedAt, it.Resolved)
		if err != nil {
			return fmt.Errorf("insert reconciliation item: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListUnresolved(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT `+itemColumns+` FROM reconciliation_queue
		WHERE NOT resolved ORDER BY observed_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation items: %w", err)
	}
	defer rows.Close()
	var out []*Item
	for rows.Next() {
		var (
			it                        Item
			id                        uuid.UUID
			localOrigin, remoteOrigin string
		)
		if err := rows.Scan(&id, &it.EntityType, &it.EntityID, &it.Field, &it.LocalValue, &it.RemoteValue,
			&localOrigin, &remoteOrigin, &it.ObservedAt, &it.Resolved); err != nil {
			return nil, fmt.Errorf("scan reconciliation item: %w", err)
		}
		it.ID = domain.ReconciliationID(id)
		it.LocalOrigin = domain.HospitalID(localOrigin)
		it.RemoteOrigin = domain.HospitalID(remoteOrigin)
		out = append(out, &it)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Resolve(ctx context.Context, id domain.ReconciliationID) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE reconciliation_queue SET resolved = TRUE WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("resolve reconciliation item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("reconciliation item %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

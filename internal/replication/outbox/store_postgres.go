package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reunite/pkg/domain"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists the outbox in the node-local database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const outboxColumns = `id, origin_hospital_id, entity_type, entity_id, payload, clock, status,
	retry_count, next_attempt_at, sent_at, last_error, created_at`

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO sync_outbox (` + outboxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		e.Origin.String(),
		string(e.EntityType),
		e.EntityID,
		[]byte(e.Payload),
		e.Clock,
		string(e.Status),
		e.RetryCount,
		e.NextAttemptAt,
		e.SentAt,
		e.LastError,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Entry, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM sync_outbox
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY clock, id
		LIMIT $2
	`
	return s.query(ctx, query, now, limit)
}

func (s *PostgresStore) ListUnackedSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM sync_outbox
		WHERE status = 'sent' AND sent_at < $1
		ORDER BY clock, id
		LIMIT $2
	`
	return s.query(ctx, query, cutoff, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e          Entry
			id         uuid.UUID
			origin     string
			entityType string
			status     string
			payload    []byte
			sentAt     sql.NullTime
		)
		if err := rows.Scan(&id, &origin, &entityType, &e.EntityID, &payload, &e.Clock, &status,
			&e.RetryCount, &e.NextAttemptAt, &sentAt, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.ID = domain.OutboxEntryID(id)
		e.Origin = domain.HospitalID(origin)
		e.EntityType = EntityType(entityType)
		e.Status = Status(status)
		e.Payload = payload
		if sentAt.Valid {
			t := sentAt.Time
			e.SentAt = &t
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, ids []domain.OutboxEntryID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	query := `
		UPDATE sync_outbox SET status = 'sent', sent_at = $2
		WHERE id = ANY($1::uuid[]) AND status = 'pending'
	`
	if _, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, pq.Array(raw), at); err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkAcked(ctx context.Context, id domain.OutboxEntryID) error {
	query := `UPDATE sync_outbox SET status = 'acked', last_error = '' WHERE id = $1`
	if _, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(id)); err != nil {
		return fmt.Errorf("mark outbox acked: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkRetry(ctx context.Context, id domain.OutboxEntryID, retryCount int, next time.Time, lastErr string) error {
	query := `
		UPDATE sync_outbox
		SET status = 'pending', retry_count = $2, next_attempt_at = $3, last_error = $4, sent_at = NULL
		WHERE id = $1
	`
	if _, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(id), retryCount, next, lastErr); err != nil {
		return fmt.Errorf("mark outbox retry: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id domain.OutboxEntryID, lastErr string) error {
	query := `UPDATE sync_outbox SET status = 'failed', last_error = $2 WHERE id = $1`
	if _, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(id), lastErr); err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reunite/internal/notify/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const notificationColumns = `id, idempotency_key, patient_id, contact_ref, notification_type, message,
	channel, recipient, event_id, origin_hospital_id, status, delivered, read, attempts, last_error,
	next_attempt_at, sent_at, read_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO family_notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, uuid.UUID(n.ID), n.IdempotencyKey, n.PatientID.String(), n.ContactRef, string(n.Type), n.Message,
		string(n.Channel), n.Recipient, uuid.UUID(n.EventID), n.OriginHospitalID.String(), string(n.Status),
		n.Delivered, n.Read, n.Attempts, n.LastError, n.NextAttemptAt, n.SentAt, n.ReadAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("notification %s: %w", n.IdempotencyKey, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(id))
}

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*models.Notification, error) {
	return s.findOne(ctx, `WHERE idempotency_key = $1`, key)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Notification, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM family_notifications `+where, arg)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %v: %w", arg, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListDue(ctx context.Context, owner domain.HospitalID, now time.Time, limit int) ([]*models.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM family_notifications
		WHERE origin_hospital_id = $1 AND status = 'pending' AND next_attempt_at <= $2
		ORDER BY created_at, idempotency_key
		LIMIT $3
	`, owner.String(), now, limit)
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID domain.PatientID) ([]*models.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM family_notifications
		WHERE patient_id = $1
		ORDER BY created_at, idempotency_key
	`, patientID.String())
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Notification, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, id domain.NotificationID, at time.Time) error {
	return s.exec(ctx, id, `
		UPDATE family_notifications
		SET status = 'delivered', delivered = TRUE, sent_at = $2, attempts = attempts + 1, last_error = ''
		WHERE id = $1
	`, at)
}

func (s *PostgresStore) MarkRetry(ctx context.Context, id domain.NotificationID, attempts int, next time.Time, lastErr string) error {
	return s.exec(ctx, id, `
		UPDATE family_notifications SET attempts = $2, next_attempt_at = $3, last_error = $4 WHERE id = $1
	`, attempts, next, lastErr)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id domain.NotificationID, attempts int, lastErr string) error {
	return s.exec(ctx, id, `
		UPDATE family_notifications SET status = 'failed', attempts = $2, last_error = $3 WHERE id = $1
	`, attempts, lastErr)
}

func (s *PostgresStore) MarkRead(ctx context.Context, id domain.NotificationID, at time.Time) error {
	return s.exec(ctx, id, `
		UPDATE family_notifications SET read = TRUE, read_at = COALESCE(read_at, $2) WHERE id = $1
	`, at)
}

func (s *PostgresStore) UpdateState(ctx context.Context, n *models.Notification) error {
	return s.exec(ctx, n.ID, `
		UPDATE family_notifications
		SET status = $2, delivered = $3, read = $4, sent_at = $5, read_at = $6, last_error = $7
		WHERE id = $1
	`, string(n.Status), n.Delivered, n.Read, n.SentAt, n.ReadAt, n.LastError)
}

func (s *PostgresStore) exec(ctx context.Context, id domain.NotificationID, query string, args ...any) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, append([]any{uuid.UUID(id)}, args...)...)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("notification %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n                                       models.Notification
		id, eventID                             uuid.UUID
		patientID, typ, channel, origin, status string
		sentAt, readAt                          sql.NullTime
	)
	if err := row.Scan(&id, &n.IdempotencyKey, &patientID, &n.ContactRef, &typ, &n.Message,
		&channel, &n.Recipient, &eventID, &origin, &status, &n.Delivered, &n.Read, &n.Attempts, &n.LastError,
		&n.NextAttemptAt, &sentAt, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = domain.NotificationID(id)
	n.EventID = domain.EventID(eventID)
	n.PatientID = domain.PatientID(patientID)
	n.Type = models.Type(typ)
	n.Channel = models.Channel(channel)
	n.OriginHospitalID = domain.HospitalID(origin)
	n.Status = models.Status(status)
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return &n, nil
}

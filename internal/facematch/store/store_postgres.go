package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reunite/internal/facematch/models"
	"reunite/internal/platform/postgres"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists photos with their embeddings as float8 arrays.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const photoColumns = `id, patient_id, hospital_id, content_hash, vector, is_primary, quality, captured_at`

func (s *PostgresStore) Save(ctx context.Context, p *models.Photo) error {
	query := `
		INSERT INTO patient_photos (` + photoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.PatientID.String(), p.HospitalID.String(), p.ContentHash,
		pq.Array([]float64(p.Vector)), p.IsPrimary, p.Quality, p.CapturedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("photo for patient %s: %w", p.PatientID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PhotoID) (*models.Photo, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM patient_photos WHERE id = $1`, uuid.UUID(id))
	return s.one(row, id.String())
}

func (s *PostgresStore) FindByHash(ctx context.Context, patientID domain.PatientID, hash string) (*models.Photo, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM patient_photos WHERE patient_id = $1 AND content_hash = $2`,
		patientID.String(), hash)
	return s.one(row, patientID.String())
}

func (s *PostgresStore) one(row *sql.Row, ref string) (*models.Photo, error) {
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", ref, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID domain.PatientID) ([]*models.Photo, error) {
	return s.list(ctx, `SELECT `+photoColumns+` FROM patient_photos WHERE patient_id = $1
		ORDER BY is_primary DESC, captured_at DESC`, patientID.String())
}

func (s *PostgresStore) All(ctx context.Context) ([]*models.Photo, error) {
	return s.list(ctx, `SELECT `+photoColumns+` FROM patient_photos ORDER BY captured_at`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Photo, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()
	var out []*models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveVerification(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO photo_verifications (id, match_id, photo_id, patient_id, hospital_id, confidence,
			verified_by, verified_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(v.ID), uuid.UUID(v.MatchID), uuid.UUID(v.PhotoID), v.PatientID.String(),
		v.HospitalID.String(), v.Confidence, v.VerifiedBy, v.VerifiedAt, v.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row scanner) (*models.Photo, error) {
	var (
		p          models.Photo
		id         uuid.UUID
		patientID  string
		hospitalID string
		vector     pq.Float64Array
	)
	if err := row.Scan(&id, &patientID, &hospitalID, &p.ContentHash, &vector, &p.IsPrimary, &p.Quality, &p.CapturedAt); err != nil {
		return nil, err
	}
	p.ID = domain.PhotoID(id)
	p.PatientID = domain.PatientID(patientID)
	p.HospitalID = domain.HospitalID(hospitalID)
	p.Vector = models.Vector(vector)
	return &p, nil
}

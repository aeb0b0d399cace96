package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reunite/internal/directory/models"
	"reunite/internal/platform/postgres"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
	txcontext "reunite/pkg/platform/tx"
)

// PostgresStore persists the directory in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const locationColumns = `patient_id, hospital_id, clinical_status, identified_by, identified_at,
	verifying_hospital_id, location_updated_at, status_updated_at, transfer_history, origin_hospital_id`

// FindByPatient loads the current record. Inside a transaction the row is
// locked until commit, which serializes writers per patient.
func (s *PostgresStore) FindByPatient(ctx context.Context, patientID domain.PatientID) (*models.LocationRecord, error) {
	query := `SELECT ` + locationColumns + ` FROM patient_locations WHERE patient_id = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	r, err := scanLocation(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, patientID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location for patient %s: %w", patientID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find location: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Save(ctx context.Context, r *models.LocationRecord) error {
	query := `
		INSERT INTO patient_locations (` + locationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (patient_id) DO UPDATE SET
			hospital_id = EXCLUDED.hospital_id,
			clinical_status = EXCLUDED.clinical_status,
			identified_by = EXCLUDED.identified_by,
			identified_at = EXCLUDED.identified_at,
			verifying_hospital_id = EXCLUDED.verifying_hospital_id,
			location_updated_at = EXCLUDED.location_updated_at,
			status_updated_at = EXCLUDED.status_updated_at,
			transfer_history = EXCLUDED.transfer_history,
			origin_hospital_id = EXCLUDED.origin_hospital_id
	`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		r.PatientID.String(), r.HospitalID.String(), string(r.ClinicalStatus), r.IdentifiedBy, r.IdentifiedAt,
		r.VerifyingHospitalID.String(), r.LocationUpdatedAt, r.StatusUpdatedAt,
		pq.Array(hospitalStrings(r.TransferHistory)), r.OriginHospitalID.String(),
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("location for patient %s references unknown hospital: %w", r.PatientID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByHospital(ctx context.Context, hospitalID domain.HospitalID) ([]*models.LocationRecord, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+locationColumns+` FROM patient_locations WHERE hospital_id = $1 ORDER BY patient_id`,
		hospitalID.String())
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	var out []*models.LocationRecord
	for rows.Next() {
		r, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountCurrentByHospital(ctx context.Context) (map[domain.HospitalID]int, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT hospital_id, COUNT(*) FROM patient_locations
		WHERE clinical_status NOT IN ('discharged', 'deceased', 'reunified')
		GROUP BY hospital_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count locations: %w", err)
	}
	defer rows.Close()
	counts := make(map[domain.HospitalID]int)
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.HospitalID(id)] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) AppendTransfer(ctx context.Context, t *models.Transfer) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO patient_transfers (id, patient_id, from_hospital, to_hospital, reason, transferred_by, transferred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.PatientID.String(), t.FromHospital.String(), t.ToHospital.String(), t.Reason, t.TransferredBy, t.TransferredAt)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTransfers(ctx context.Context, patientID domain.PatientID) ([]*models.Transfer, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, patient_id, from_hospital, to_hospital, reason, transferred_by, transferred_at
		FROM patient_transfers WHERE patient_id = $1 ORDER BY transferred_at
	`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	var out []*models.Transfer
	for rows.Next() {
		var (
			t                 models.Transfer
			patient, from, to string
		)
		if err := rows.Scan(&t.ID, &patient, &from, &to, &t.Reason, &t.TransferredBy, &t.TransferredAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.PatientID = domain.PatientID(patient)
		t.FromHospital = domain.HospitalID(from)
		t.ToHospital = domain.HospitalID(to)
		out = append(out, &t)
	}
	return out, rows.Err()
}

const broadcastColumns = `id, hospital_id, patient_id, broadcast_type, message, photo_id,
	description_hash, origin_hospital_id, created_at`

func (s *PostgresStore) CreateBroadcast(ctx context.Context, b *models.Broadcast) error {
	var photoID any
	if b.PhotoID != nil {
		photoID = uuid.UUID(*b.PhotoID)
	}
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO hospital_broadcasts (`+broadcastColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hospital_id, patient_id, broadcast_type, description_hash) DO NOTHING
	`, uuid.UUID(b.ID), b.HospitalID.String(), b.PatientID.String(), string(b.Type), b.Message,
		photoID, b.DescriptionHash, b.OriginHospitalID.String(), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert broadcast: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("broadcast for %s at %s: %w", b.PatientID, b.HospitalID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindBroadcast(ctx context.Context, hospitalID domain.HospitalID, patientID domain.PatientID, kind models.BroadcastType, hash string) (*models.Broadcast, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+broadcastColumns+` FROM hospital_broadcasts
		WHERE hospital_id = $1 AND patient_id = $2 AND broadcast_type = $3 AND description_hash = $4
	`, hospitalID.String(), patientID.String(), string(kind), hash)
	b, err := scanBroadcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("broadcast for %s at %s: %w", patientID, hospitalID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find broadcast: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBroadcasts(ctx context.Context, hospitalID domain.HospitalID) ([]*models.Broadcast, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+broadcastColumns+` FROM hospital_broadcasts WHERE hospital_id = $1 ORDER BY created_at`,
		hospitalID.String())
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	defer rows.Close()
	var out []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SavePendingEvent journals e inside the caller's transaction.
func (s *PostgresStore) SavePendingEvent(ctx context.Context, e *models.LocationEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode location event: %w", err)
	}
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO location_events_pending (event_id, patient_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, e.EventID.String(), e.PatientID.String(), payload, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("save pending event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPendingEvents(ctx context.Context, limit int) ([]*models.LocationEvent, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT payload FROM location_events_pending ORDER BY journaled_at, event_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	defer rows.Close()
	var out []*models.LocationEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		var e models.LocationEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode pending event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeletePendingEvent(ctx context.Context, id domain.EventID) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM location_events_pending WHERE event_id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete pending event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (*models.LocationRecord, error) {
	var (
		r                            models.LocationRecord
		patient, hospital, verifying string
		status, origin               string
		history                      pq.StringArray
	)
	err := row.Scan(&patient, &hospital, &status, &r.IdentifiedBy, &r.IdentifiedAt,
		&verifying, &r.LocationUpdatedAt, &r.StatusUpdatedAt, &history, &origin)
	if err != nil {
		return nil, err
	}
	r.PatientID = domain.PatientID(patient)
	r.HospitalID = domain.HospitalID(hospital)
	r.ClinicalStatus = models.ClinicalStatus(status)
	r.VerifyingHospitalID = domain.HospitalID(verifying)
	r.OriginHospitalID = domain.HospitalID(origin)
	r.TransferHistory = make([]domain.HospitalID, 0, len(history))
	for _, h := range history {
		r.TransferHistory = append(r.TransferHistory, domain.HospitalID(h))
	}
	return &r, nil
}

func scanBroadcast(row scanner) (*models.Broadcast, error) {
	var (
		b                         models.Broadcast
		id                        uuid.UUID
		photoID                   uuid.NullUUID
		hospital, patient, origin string
		kind                      string
	)
	err := row.Scan(&id, &hospital, &patient, &kind, &b.Message, &photoID, &b.DescriptionHash, &origin, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ID = domain.BroadcastID(id)
	b.HospitalID = domain.HospitalID(hospital)
	b.PatientID = domain.PatientID(patient)
	b.Type = models.BroadcastType(kind)
	b.OriginHospitalID = domain.HospitalID(origin)
	if photoID.Valid {
		p := domain.PhotoID(photoID.UUID)
		b.PhotoID = &p
	}
	return &b, nil
}

func hospitalStrings(ids []domain.HospitalID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

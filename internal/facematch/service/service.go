// Package service is the facial match index: photo enrollment, nearest
// neighbour search across hospitals and match verification.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/blake2b"

	dmodels "reunite/internal/directory/models"
	"reunite/internal/facematch/extractor"
	"reunite/internal/facematch/index"
	"reunite/internal/facematch/metrics"
	"reunite/internal/facematch/models"
	hmodels "reunite/internal/hospital/models"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/sentinel"
	"reunite/pkg/platform/tx"
	"reunite/pkg/requestcontext"
)

var tracer = otel.Tracer("reunite/facematch")

const (
	defaultMatchTTL      = time.Hour
	defaultMatchCapacity = 10000
)

type Store interface {
	Save(ctx context.Context, p *models.Photo) error
	FindByID(ctx context.Context, id domain.PhotoID) (*models.Photo, error)
	FindByHash(ctx context.Context, patientID domain.PatientID, hash string) (*models.Photo, error)
	ListByPatient(ctx context.Context, patientID domain.PatientID) ([]*models.Photo, error)
	All(ctx context.Context) ([]*models.Photo, error)
	SaveVerification(ctx context.Context, v *models.Verification) error
}

type Hospitals interface {
	RequireActive(ctx context.Context, id domain.HospitalID) (*hmodels.Hospital, error)
}

// Directory records verified identities.
type Directory interface {
	RecordLocation(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID, identifiedBy string, status dmodels.ClinicalStatus) (*dmodels.RecordResult, error)
}

type Outbox interface {
	Write(ctx context.Context, entityType outbox.EntityType, entityID string, payload any) error
}

// Service implements enrollment, search and verification.
type Service struct {
	store      Store
	index      *index.Index
	extractor  extractor.Extractor
	hospitals  Hospitals
	directory  Directory
	outbox     Outbox
	self       domain.HospitalID
	tx         tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	matches    *expirable.LRU[domain.MatchID, models.MatchResult]
	threshold  float64
	maxResults int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSearchDefaults overrides the distance threshold and result cap used
// when a search does not give its own.
func WithSearchDefaults(threshold float64, maxResults int) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
		if maxResults > 0 {
			s.maxResults = maxResults
		}
	}
}

// WithMatchRetention sets how long and how many search results stay
// available for verification.
func WithMatchRetention(ttl time.Duration, capacity int) Option {
	return func(s *Service) {
		s.matches = expirable.NewLRU[domain.MatchID, models.MatchResult](capacity, nil, ttl)
	}
}

func New(store Store, idx *index.Index, ext extractor.Extractor, hospitals Hospitals, directory Directory, ob Outbox, self domain.HospitalID, opts ...Option) *Service {
	s := &Service{
		store:      store,
		index:      idx,
		extractor:  ext,
		hospitals:  hospitals,
		directory:  directory,
		outbox:     ob,
		self:       self,
		threshold:  models.DefaultDistanceThreshold,
		maxResults: models.DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewShardedRunner()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.matches == nil {
		s.matches = expirable.NewLRU[domain.MatchID, models.MatchResult](defaultMatchCapacity, nil, defaultMatchTTL)
	}
	return s
}

// Enroll extracts an embedding from image and stores it as a photo of
// patientID taken at hospitalID. Enrolling the same bytes for the same
// patient again returns the existing photo.
func (s *Service) Enroll(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID, image []byte, isPrimary bool) (*models.EnrollResult, error) {
	ctx, span := tracer.Start(ctx, "facematch.Enroll")
	defer span.End()
	span.SetAttributes(attribute.String("patient_id", patientID.String()), attribute.String("hospital_id", hospitalID.String()))

	result, err := s.enroll(ctx, patientID, hospitalID, image, isPrimary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		s.metrics.IncrementEnrollment("rejected")
		return nil, err
	}
	if result.Duplicate {
		s.metrics.IncrementEnrollment("duplicate")
	} else {
		s.metrics.IncrementEnrollment("created")
	}
	return result, nil
}

func (s *Service) enroll(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID, image []byte, isPrimary bool) (*models.EnrollResult, error) {
	if _, err := domain.ParsePatientID(patientID.String()); err != nil {
		return nil, err
	}
	if _, err := s.hospitals.RequireActive(ctx, hospitalID); err != nil {
		return nil, err
	}
	hash := ContentHash(image)
	if existing, err := s.store.FindByHash(ctx, patientID, hash); err == nil {
		return &models.EnrollResult{Photo: existing, Duplicate: true}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate photo")
	}

	extraction, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}
	face, ok := extraction.Largest()
	if !ok {
		return nil, extractor.ErrNoFace()
	}
	result := &models.EnrollResult{FaceCount: extraction.FaceCount()}
	if extraction.FaceCount() > 1 {
		result.Warning = dErrors.New(dErrors.CodeMultipleFacesDetected, "multiple faces detected, enrolled the largest").Error()
		s.logger.WarnContext(ctx, "multiple_faces_detected",
			"patient_id", patientID,
			"face_count", extraction.FaceCount(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	photo := &models.Photo{
		ID:          domain.PhotoID(uuid.New()),
		PatientID:   patientID,
		HospitalID:  hospitalID,
		ContentHash: hash,
		Vector:      face.Vector,
		IsPrimary:   isPrimary,
		Quality:     face.Quality,
		CapturedAt:  requestcontext.Now(ctx),
	}
	err = s.tx.RunInTx(tx.WithShardKey(ctx, "patient:"+patientID.String()), func(txCtx context.Context) error {
		if err := s.store.Save(txCtx, photo); err != nil {
			return err
		}
		return s.outbox.Write(txCtx, outbox.EntityPatientPhoto, photo.ID.String(), photo)
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		existing, findErr := s.store.FindByHash(ctx, patientID, hash)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load duplicate photo")
		}
		return &models.EnrollResult{Photo: existing, Duplicate: true, FaceCount: result.FaceCount}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll photo")
	}
	s.publish(indexEntry(photo))
	result.Photo = photo

	s.logger.InfoContext(ctx, "photo_enrolled",
		"photo_id", photo.ID,
		"patient_id", patientID,
		"enrolled_at_hospital_id", hospitalID,
		"is_primary", isPrimary,
		"operator", requestcontext.OperatorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// Search finds enrolled photos resembling the face in image. Zero values
// for maxResults and threshold select the configured defaults. No match is
// an empty result, not an error. Only the local snapshot is read, so a
// search succeeds with every peer unreachable.
func (s *Service) Search(ctx context.Context, image []byte, scope models.Scope, maxResults int, threshold float64) ([]models.MatchResult, error) {
	ctx, span := tracer.Start(ctx, "facematch.Search")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveSearchLatency(time.Since(start)) }()

	if maxResults <= 0 {
		maxResults = s.maxResults
	}
	if threshold <= 0 {
		threshold = s.threshold
	}
	if threshold > 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "distance threshold must be at most 2")
	}

	extraction, err := s.extractor.Extract(ctx, image)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	face, ok := extraction.Largest()
	if !ok {
		return nil, extractor.ErrNoFace()
	}

	snap := s.index.Snapshot()
	candidates := snap.Search(face.Vector, scope, threshold, maxResults)
	results := make([]models.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		confidence := models.Confidence(c.Distance)
		r := models.MatchResult{
			MatchID:    domain.MatchID(uuid.New()),
			PatientID:  c.PatientID,
			HospitalID: c.HospitalID,
			PhotoID:    c.PhotoID,
			Distance:   c.Distance,
			Confidence: confidence,
			Tier:       models.Classify(confidence),
		}
		s.matches.Add(r.MatchID, r)
		s.metrics.IncrementMatch(string(r.Tier))
		results = append(results, r)
	}
	span.SetAttributes(
		attribute.Int64("snapshot_generation", int64(snap.Generation())),
		attribute.Int("result_count", len(results)),
	)
	s.logger.InfoContext(ctx, "photo_search",
		"scope_hospital_id", scope.HospitalID,
		"result_count", len(results),
		"snapshot_generation", snap.Generation(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return results, nil
}

// Verify confirms a search result as patientID and records the patient as
// located at this node's hospital. It is the only path from a match to the
// directory.
func (s *Service) Verify(ctx context.Context, matchID domain.MatchID, patientID domain.PatientID, verifier, notes string, status dmodels.ClinicalStatus) (*models.Verification, error) {
	ctx, span := tracer.Start(ctx, "facematch.Verify")
	defer span.End()

	match, ok := s.matches.Get(matchID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "match %s is unknown or expired", matchID)
	}
	if patientID.IsZero() {
		patientID = match.PatientID
	}
	if patientID != match.PatientID {
		return nil, dErrors.Newf(dErrors.CodeValidation, "match %s is for patient %s, not %s", matchID, match.PatientID, patientID)
	}
	if verifier == "" {
		verifier = requestcontext.OperatorID(ctx)
	}
	if verifier == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "verifier is required")
	}
	if status == "" {
		status = dmodels.StatusUnknown
	}
	if !status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid clinical status %q", status)
	}

	v := &models.Verification{
		ID:         domain.VerificationID(uuid.New()),
		MatchID:    matchID,
		PhotoID:    match.PhotoID,
		PatientID:  patientID,
		HospitalID: s.self,
		Confidence: match.Confidence,
		VerifiedBy: verifier,
		VerifiedAt: requestcontext.Now(ctx),
		Notes:      notes,
	}
	// The directory decides whether the identification stands; a rejected
	// one leaves no verification behind.
	if _, err := s.directory.RecordLocation(ctx, patientID, s.self, verifier, status); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.store.SaveVerification(ctx, v); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification")
	}
	s.logger.InfoContext(ctx, "match_verified",
		"match_id", matchID,
		"patient_id", patientID,
		"confidence", match.Confidence,
		"verified_by", verifier,
		"request_id", requestcontext.RequestID(ctx),
	)
	return v, nil
}

// ListPatientPhotos returns a patient's photos, primary first then newest.
// A non-zero hospitalID limits the list to photos taken there.
func (s *Service) ListPatientPhotos(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID) ([]*models.Photo, error) {
	photos, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list photos")
	}
	if hospitalID.IsZero() {
		return photos, nil
	}
	filtered := photos[:0]
	for _, p := range photos {
		if p.HospitalID == hospitalID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// ApplyReplicatedPhoto stores and indexes a photo enrolled at a peer.
func (s *Service) ApplyReplicatedPhoto(ctx context.Context, p *models.Photo) error {
	if p == nil || p.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "replicated photo missing id")
	}
	if err := p.Vector.Validate(); err != nil {
		return err
	}
	err := s.tx.RunInTx(tx.WithShardKey(ctx, "patient:"+p.PatientID.String()), func(txCtx context.Context) error {
		return s.store.Save(txCtx, p)
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		// Same bytes already enrolled for this patient under another id.
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store replicated photo")
	}
	s.publish(indexEntry(p))
	return nil
}

// Warm rebuilds the snapshot from the store.
func (s *Service) Warm(ctx context.Context) error {
	photos, err := s.store.All(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load photos")
	}
	entries := make([]index.Entry, 0, len(photos))
	for _, p := range photos {
		entries = append(entries, indexEntry(p))
	}
	snap := s.index.Replace(entries)
	s.metrics.SetIndex(snap.Len(), snap.Generation())
	s.logger.InfoContext(ctx, "match_index_warmed",
		"photos", snap.Len(),
		"hospitals", snap.HospitalCount(),
		"generation", snap.Generation(),
	)
	return nil
}

func (s *Service) publish(e index.Entry) {
	snap := s.index.Add(e)
	s.metrics.SetIndex(snap.Len(), snap.Generation())
}

func indexEntry(p *models.Photo) index.Entry {
	return index.Entry{PhotoID: p.ID, PatientID: p.PatientID, HospitalID: p.HospitalID, Vector: p.Vector}
}

// ContentHash is the hex BLAKE2b-256 digest of image.
func ContentHash(image []byte) string {
	sum := blake2b.Sum256(image)
	return hex.EncodeToString(sum[:])
}

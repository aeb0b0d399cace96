package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dmodels "reunite/internal/directory/models"
	"reunite/internal/facematch/models"
	"reunite/internal/platform/middleware"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/httputil"
	"reunite/pkg/requestcontext"
)

// Service defines the facial match operations exposed over HTTP.
type Service interface {
	Enroll(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID, image []byte, isPrimary bool) (*models.EnrollResult, error)
	Search(ctx context.Context, image []byte, scope models.Scope, maxResults int, threshold float64) ([]models.MatchResult, error)
	Verify(ctx context.Context, matchID domain.MatchID, patientID domain.PatientID, verifier, notes string, status dmodels.ClinicalStatus) (*models.Verification, error)
	ListPatientPhotos(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID) ([]*models.Photo, error)
}

// EnrollRequest is the body of POST /patients/{patientID}/photos. Image is
// base64 in JSON.
type EnrollRequest struct {
	HospitalID string `json:"hospital_id" validate:"max=64"`
	Image      []byte `json:"image" validate:"required"`
	IsPrimary  bool   `json:"is_primary"`
}

// SearchRequest is the body of POST /search. An empty hospital_id searches
// the whole network.
type SearchRequest struct {
	Image      []byte  `json:"image" validate:"required"`
	HospitalID string  `json:"hospital_id" validate:"max=64"`
	MaxResults int     `json:"max_results" validate:"gte=0,lte=100"`
	Threshold  float64 `json:"threshold" validate:"gte=0"`
}

// VerifyRequest is the body of POST /matches/{matchID}/verify.
type VerifyRequest struct {
	PatientID      string `json:"patient_id" validate:"max=64"`
	Notes          string `json:"notes" validate:"max=2048"`
	ClinicalStatus string `json:"clinical_status"`
}

// Handler wires facial match endpoints to the match service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts facial match endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/patients/{patientID}/photos", h.HandleEnroll)
	r.Get("/patients/{patientID}/photos", h.HandleListPhotos)
	r.Post("/search", h.HandleSearch)
	r.Post("/matches/{matchID}/verify", h.HandleVerify)
}

// HandleEnroll handles POST /patients/{patientID}/photos. The hospital
// defaults to the one the operator's token was issued for.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	raw := req.HospitalID
	if raw == "" {
		raw = middleware.GetOperatorHospital(ctx)
	}
	hospitalID, err := domain.ParseHospitalID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Enroll(ctx, patientID, hospitalID, req.Image, req.IsPrimary)
	if err != nil {
		h.logger.WarnContext(ctx, "photo enrollment failed",
			"request_id", requestID,
			"patient_id", patientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	code := http.StatusCreated
	if result.Duplicate {
		code = http.StatusOK
	}
	httputil.WriteJSON(w, code, result)
}

// HandleListPhotos handles GET /patients/{patientID}/photos.
func (h *Handler) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var hospitalID domain.HospitalID
	if raw := r.URL.Query().Get("hospital_id"); raw != "" {
		if hospitalID, err = domain.ParseHospitalID(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	photos, err := h.service.ListPatientPhotos(r.Context(), patientID, hospitalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

// HandleSearch handles POST /search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[SearchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	scope := models.ScopeAll
	if req.HospitalID != "" {
		hospitalID, err := domain.ParseHospitalID(req.HospitalID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		scope = models.Scope{HospitalID: hospitalID}
	}

	results, err := h.service.Search(ctx, req.Image, scope, req.MaxResults, req.Threshold)
	if err != nil {
		h.logger.WarnContext(ctx, "photo search failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	if results == nil {
		results = []models.MatchResult{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"matches": results})
}

// HandleVerify handles POST /matches/{matchID}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	matchID, err := domain.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	var patientID domain.PatientID
	if req.PatientID != "" {
		if patientID, err = domain.ParsePatientID(req.PatientID); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	status := dmodels.ClinicalStatus(req.ClinicalStatus)
	if req.ClinicalStatus != "" && !status.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid clinical status %q", req.ClinicalStatus))
		return
	}

	v, err := h.service.Verify(ctx, matchID, patientID, requestcontext.OperatorID(ctx), req.Notes, status)
	if err != nil {
		h.logger.WarnContext(ctx, "match verification failed",
			"request_id", requestID,
			"match_id", matchID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

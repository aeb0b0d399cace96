package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reunite/internal/directory/models"
	hmodels "reunite/internal/hospital/models"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/httputil"
	"reunite/pkg/requestcontext"
)

// Service defines the directory operations exposed over HTTP.
type Service interface {
	RecordLocation(ctx context.Context, patientID domain.PatientID, hospitalID domain.HospitalID, identifiedBy string, status models.ClinicalStatus) (*models.RecordResult, error)
	Transfer(ctx context.Context, patientID domain.PatientID, from, to domain.HospitalID, reason string) (*models.LocationRecord, error)
	UpdateStatus(ctx context.Context, patientID domain.PatientID, status models.ClinicalStatus) (*models.LocationRecord, error)
	GetLocation(ctx context.Context, patientID domain.PatientID) (*models.LocationRecord, error)
	ListTransfers(ctx context.Context, patientID domain.PatientID) ([]*models.Transfer, error)
	BroadcastMissingPerson(ctx context.Context, patientID domain.PatientID, description string, photoID *domain.PhotoID) (*models.BroadcastResult, error)
	BroadcastUnidentified(ctx context.Context, patientID domain.PatientID, description string, photoID *domain.PhotoID) (*models.BroadcastResult, error)
	ListBroadcasts(ctx context.Context, hospitalID domain.HospitalID) ([]*models.Broadcast, error)
	HospitalDistribution(ctx context.Context) ([]hmodels.Distribution, error)
	PatientsAtHospital(ctx context.Context, hospitalID domain.HospitalID, includeTerminal bool) ([]*models.LocationRecord, error)
}

// Handler wires location directory endpoints to the directory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts directory endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/locations", h.HandleRecordLocation)
	r.Get("/patients/{patientID}/location", h.HandleGetLocation)
	r.Get("/patients/{patientID}/transfers", h.HandleListTransfers)
	r.Post("/patients/{patientID}/transfer", h.HandleTransfer)
	r.Post("/patients/{patientID}/status", h.HandleUpdateStatus)
	r.Post("/broadcasts/missing-person", h.HandleBroadcastMissing)
	r.Post("/broadcasts/unidentified", h.HandleBroadcastUnidentified)
	r.Get("/hospitals/distribution", h.HandleDistribution)
	r.Get("/hospitals/{hospitalID}/patients", h.HandlePatientsAtHospital)
	r.Get("/hospitals/{hospitalID}/broadcasts", h.HandleListBroadcasts)
}

// HandleRecordLocation handles POST /locations.
func (h *Handler) HandleRecordLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[RecordLocationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	patientID, err := domain.ParsePatientID(req.PatientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospitalID, err := domain.ParseHospitalID(req.HospitalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := parseStatus(req.ClinicalStatus)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.RecordLocation(ctx, patientID, hospitalID, req.IdentifiedBy, status)
	if err != nil {
		h.logger.WarnContext(ctx, "record location failed",
			"request_id", requestID,
			"patient_id", patientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	code := http.StatusOK
	if result.Outcome == models.OutcomeCreated {
		code = http.StatusCreated
	}
	httputil.WriteJSON(w, code, result)
}

// HandleGetLocation handles GET /patients/{patientID}/location.
func (h *Handler) HandleGetLocation(w http.ResponseWriter, r *http.Request) {
	patientID, ok := patientParam(w, r)
	if !ok {
		return
	}
	record, err := h.service.GetLocation(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleListTransfers handles GET /patients/{patientID}/transfers.
func (h *Handler) HandleListTransfers(w http.ResponseWriter, r *http.Request) {
	patientID, ok := patientParam(w, r)
	if !ok {
		return
	}
	transfers, err := h.service.ListTransfers(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

// HandleTransfer handles POST /patients/{patientID}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	patientID, ok := patientParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	from, err := domain.ParseHospitalID(req.FromHospitalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := domain.ParseHospitalID(req.ToHospitalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.service.Transfer(ctx, patientID, from, to, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer failed",
			"request_id", requestID,
			"patient_id", patientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleUpdateStatus handles POST /patients/{patientID}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, ok := patientParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	status, err := parseStatus(req.ClinicalStatus)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.service.UpdateStatus(ctx, patientID, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleBroadcastMissing handles POST /broadcasts/missing-person.
func (h *Handler) HandleBroadcastMissing(w http.ResponseWriter, r *http.Request) {
	h.broadcast(w, r, h.service.BroadcastMissingPerson)
}

// HandleBroadcastUnidentified handles POST /broadcasts/unidentified.
func (h *Handler) HandleBroadcastUnidentified(w http.ResponseWriter, r *http.Request) {
	h.broadcast(w, r, h.service.BroadcastUnidentified)
}

type broadcastFunc func(context.Context, domain.PatientID, string, *domain.PhotoID) (*models.BroadcastResult, error)

func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request, send broadcastFunc) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.Decode[BroadcastRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	patientID, err := domain.ParsePatientID(req.PatientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	photoID, err := req.photoID()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := send(ctx, patientID, req.Description, photoID)
	if err != nil {
		h.logger.WarnContext(ctx, "broadcast failed",
			"request_id", requestID,
			"patient_id", patientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleDistribution handles GET /hospitals/distribution.
func (h *Handler) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := h.service.HospitalDistribution(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"hospitals": dist})
}

// HandlePatientsAtHospital handles GET /hospitals/{hospitalID}/patients.
// Pass include_terminal=true to include discharged, deceased and reunified
// patients.
func (h *Handler) HandlePatientsAtHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok {
		return
	}
	includeTerminal := false
	if v := r.URL.Query().Get("include_terminal"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "include_terminal must be a boolean"))
			return
		}
		includeTerminal = parsed
	}
	records, err := h.service.PatientsAtHospital(r.Context(), hospitalID, includeTerminal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"patients": records})
}

// HandleListBroadcasts handles GET /hospitals/{hospitalID}/broadcasts.
func (h *Handler) HandleListBroadcasts(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := hospitalParam(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListBroadcasts(r.Context(), hospitalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"broadcasts": list})
}

func patientParam(w http.ResponseWriter, r *http.Request) (domain.PatientID, bool) {
	id, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

func hospitalParam(w http.ResponseWriter, r *http.Request) (domain.HospitalID, bool) {
	id, err := domain.ParseHospitalID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reunite/internal/family/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/httputil"
	"reunite/pkg/requestcontext"
)

type Service interface {
	Link(ctx context.Context, req models.LinkRequest) (*models.Relationship, bool, error)
	RelativesOf(ctx context.Context, patientID domain.PatientID) ([]models.Relative, error)
}

// Handler wires family graph endpoints to the family service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/family/links", h.HandleLink)
	r.Get("/patients/{patientID}/relatives", h.HandleRelatives)
}

// HandleLink handles POST /family/links. Linking an existing pair returns
// 200 with the stored edge.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[models.LinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rel, created, err := h.service.Link(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "family link failed",
			"request_id", requestID,
			"patient_id", req.PatientID,
			"relative_id", req.RelativeID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	httputil.WriteJSON(w, code, rel)
}

// HandleRelatives handles GET /patients/{patientID}/relatives.
func (h *Handler) HandleRelatives(w http.ResponseWriter, r *http.Request) {
	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	relatives, err := h.service.RelativesOf(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if relatives == nil {
		relatives = []models.Relative{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"relatives": relatives})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reunite/internal/hospital/models"
	"reunite/pkg/domain"
	"reunite/pkg/platform/httputil"
	"reunite/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Hospital, error)
	Deactivate(ctx context.Context, id domain.HospitalID) (*models.Hospital, error)
	Reactivate(ctx context.Context, id domain.HospitalID) (*models.Hospital, error)
	Get(ctx context.Context, id domain.HospitalID) (*models.Hospital, error)
	List(ctx context.Context) ([]*models.Hospital, error)
}

// Handler wires hospital registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/hospitals", h.HandleList)
	r.Get("/hospitals/{hospitalID}", h.HandleGet)
}

// RegisterAdmin mounts the endpoints that change the registry.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/hospitals", h.HandleRegister)
	r.Post("/hospitals/{hospitalID}/deactivate", h.HandleDeactivate)
	r.Post("/hospitals/{hospitalID}/reactivate", h.HandleReactivate)
}

// HandleRegister handles POST /hospitals.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	hospital, err := h.service.Register(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "hospital registration failed",
			"request_id", requestID,
			"registered_hospital_id", req.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, hospital)
}

// HandleList handles GET /hospitals.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"hospitals": list})
}

// HandleGet handles GET /hospitals/{hospitalID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseHospitalID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospital, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Deactivate)
}

func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reactivate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, domain.HospitalID) (*models.Hospital, error)) {
	ctx := r.Context()
	id, err := domain.ParseHospitalID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hospital, err := apply(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "hospital transition failed",
			"request_id", requestcontext.RequestID(ctx),
			"target_hospital_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hospital)
}

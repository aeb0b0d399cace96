// Package handler exposes sync health and the manual reconciliation queue
// to coordinators.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reunite/internal/replication/outbox"
	"reunite/internal/replication/reconcile"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/httputil"
	"reunite/pkg/platform/sentinel"
	"reunite/pkg/requestcontext"
)

const reconciliationPageSize = 200

type OutboxCounter interface {
	CountByStatus(ctx context.Context) (map[outbox.Status]int, error)
}

type Handler struct {
	outbox    OutboxCounter
	reconcile reconcile.Store
	self      domain.HospitalID
	logger    *slog.Logger
}

func New(ob OutboxCounter, rs reconcile.Store, self domain.HospitalID, logger *slog.Logger) *Handler {
	return &Handler{outbox: ob, reconcile: rs, self: self, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/sync/status", h.HandleStatus)
	r.Get("/sync/reconciliation", h.HandleListReconciliation)
	r.Post("/sync/reconciliation/{itemID}/resolve", h.HandleResolve)
}

// HandleStatus handles GET /sync/status with outbox counts by state.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.outbox.CountByStatus(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count outbox"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"hospital_id": h.self,
		"outbox":      counts,
	})
}

// HandleListReconciliation handles GET /sync/reconciliation.
func (h *Handler) HandleListReconciliation(w http.ResponseWriter, r *http.Request) {
	items, err := h.reconcile.ListUnresolved(r.Context(), reconciliationPageSize)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reconciliation items"))
		return
	}
	if items == nil {
		items = []*reconcile.Item{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleResolve handles POST /sync/reconciliation/{itemID}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parsed, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid item id"))
		return
	}
	id := domain.ReconciliationID(parsed)
	if err := h.reconcile.Resolve(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "reconciliation item not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve item"))
		return
	}
	h.logger.InfoContext(ctx, "reconciliation_item_resolved",
		"item_id", id,
		"operator", requestcontext.OperatorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

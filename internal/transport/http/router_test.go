package httptransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"reunite/internal/platform/middleware"
	"reunite/pkg/requestcontext"
)

type tokenValidator map[string]*middleware.OperatorClaims

func (v tokenValidator) ValidateToken(token string) (*middleware.OperatorClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("unknown token")
}

type pingHandler struct{ path string }

func (p pingHandler) Register(r chi.Router) {
	r.Get(p.path, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.OperatorID(r.Context()))
	})
}

type adminHandler struct{}

func (adminHandler) Register(chi.Router) {}

func (adminHandler) RegisterAdmin(r chi.Router) {
	r.Post("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func newTestRouter() http.Handler {
	return NewRouter(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator: tokenValidator{
			"clin":  {Operator: "nurse.k", HospitalID: "H1", Role: RoleClinician},
			"coord": {Operator: "coord.m", HospitalID: "H1", Role: RoleCoordinator},
		},
		Handlers: []DomainHandler{pingHandler{path: "/ping"}},
		Admin:    []DomainHandler{adminHandler{}},
		Health:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
	})
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsUnauthenticated(t *testing.T) {
	rec := serve(newTestRouter(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_APIRequiresOperator(t *testing.T) {
	h := newTestRouter()

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/v1/ping", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/v1/ping", "forged").Code)

	rec := serve(h, http.MethodGet, "/v1/ping", "clin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nurse.k", rec.Body.String())
}

func TestRouter_AdminRoutesRequireCoordinator(t *testing.T) {
	h := newTestRouter()
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodPost, "/v1/ping", "clin").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodPost, "/v1/ping", "coord").Code)
}

func TestRouter_UnknownRouteIsJSON404(t *testing.T) {
	rec := serve(newTestRouter(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())
}

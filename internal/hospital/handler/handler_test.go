package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"reunite/internal/hospital/handler/mocks"
	"reunite/internal/hospital/models"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
func newRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	service := mocks.NewMockService(gomock.NewController(t))
	h := New(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	return r, service
}

func TestHandleRegister(t *testing.T) {
	req := models.RegisterRequest{ID: "H3", Name: "Stadium", Capacity: 120}

	t.Run("created", func(t *testing.T) {
		r, service := newRouter(t)
		service.EXPECT().Register(gomock.Any(), req).Return(&models.Hospital{ID: "H3", Name: "Stadium", Active: true}, nil)

		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(req)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hospitals", &buf))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		r, service := newRouter(t)
		service.EXPECT().Register(gomock.Any(), req).Return(nil, dErrors.New(dErrors.CodeConflict, "hospital already registered"))

		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(req)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hospitals", &buf))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("negative capacity", func(t *testing.T) {
		r, _ := newRouter(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hospitals", bytes.NewBufferString(`{"id":"H3","name":"Stadium","capacity":-1}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleDeactivate(t *testing.T) {
	r, service := newRouter(t)
	service.EXPECT().Deactivate(gomock.Any(), domain.HospitalID("H2")).Return(&models.Hospital{ID: "H2"}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hospitals/H2/deactivate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGet_InvalidID(t *testing.T) {
	r, _ := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hospitals/-bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

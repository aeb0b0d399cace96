package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"reunite/internal/family/handler/mocks"
	"reunite/internal/family/models"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/requestcontext"
	"reunite/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
func newRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	service := mocks.NewMockService(gomock.NewController(t))
	r := chi.NewRouter()
	New(service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, service
}

var linkedAt = time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(t, http.MethodPost, path, body)
	req = testutil.AtTime(testutil.WithOperator(req, "sw.okafor"), linkedAt)
	return testutil.DoRequest(r, req)
}

func TestHandleLink(t *testing.T) {
	req := models.LinkRequest{PatientID: "P-1", RelativeID: "P-2", Label: "parent"}
	edge := &models.Relationship{PatientA: "P-1", PatientB: "P-2", Label: models.LabelParent}

	t.Run("new edge is created", func(t *testing.T) {
		r, service := newRouter(t)
		service.EXPECT().Link(gomock.Any(), req).Return(edge, true, nil)
		assert.Equal(t, http.StatusCreated, post(t, r, "/family/links", req).Code)
	})

	t.Run("existing edge is OK", func(t *testing.T) {
		r, service := newRouter(t)
		service.EXPECT().Link(gomock.Any(), req).Return(edge, false, nil)
		assert.Equal(t, http.StatusOK, post(t, r, "/family/links", req).Code)
	})

	t.Run("operator and request time reach the service", func(t *testing.T) {
		r, service := newRouter(t)
		service.EXPECT().Link(gomock.Any(), req).DoAndReturn(func(ctx context.Context, _ models.LinkRequest) (*models.Relationship, bool, error) {
			assert.Equal(t, "sw.okafor", requestcontext.OperatorID(ctx))
			assert.Equal(t, linkedAt, requestcontext.Now(ctx))
			return edge, true, nil
		})
		assert.Equal(t, http.StatusCreated, post(t, r, "/family/links", req).Code)
	})

	t.Run("self link is rejected", func(t *testing.T) {
		r, service := newRouter(t)
		self := models.LinkRequest{PatientID: "P-1", RelativeID: "P-1", Label: "sibling"}
		service.EXPECT().Link(gomock.Any(), self).Return(nil, false, dErrors.New(dErrors.CodeValidation, "a patient cannot be related to themselves"))
		assert.Equal(t, http.StatusBadRequest, post(t, r, "/family/links", self).Code)
	})

	t.Run("label is required", func(t *testing.T) {
		r, _ := newRouter(t)
		assert.Equal(t, http.StatusBadRequest, post(t, r, "/family/links", map[string]string{"patient_id": "P-1", "relative_id": "P-2"}).Code)
	})
}

func TestHandleRelatives(t *testing.T) {
	r, service := newRouter(t)
	service.EXPECT().RelativesOf(gomock.Any(), domain.PatientID("P-2")).Return(nil, nil)

	rec := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/patients/P-2/relatives"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"relatives":[]}`, rec.Body.String())
}

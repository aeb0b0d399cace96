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
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"reunite/internal/directory/handler/mocks"
	"reunite/internal/directory/models"
	hmodels "reunite/internal/hospital/models"
	"reunite/pkg/domain"
	dErrors "reunite/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type DirectoryHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestDirectoryHandlerSuite(t *testing.T) {
	suite.Run(t, new(DirectoryHandlerSuite))
}

func (s *DirectoryHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *DirectoryHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *DirectoryHandlerSuite) TestRecordLocationCreated() {
	record := &models.LocationRecord{PatientID: "P-1", HospitalID: "H1", ClinicalStatus: models.StatusCritical}
	s.service.EXPECT().
		RecordLocation(gomock.Any(), domain.PatientID("P-1"), domain.HospitalID("H1"), "", models.StatusCritical).
		Return(&models.RecordResult{Record: record, Outcome: models.OutcomeCreated}, nil)

	rec := s.do(http.MethodPost, "/locations", RecordLocationRequest{PatientID: "P-1", HospitalID: "H1", ClinicalStatus: "critical"})

	s.Equal(http.StatusCreated, rec.Code)
	var got models.RecordResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(models.OutcomeCreated, got.Outcome)
	s.Equal(domain.HospitalID("H1"), got.Record.HospitalID)
}

func (s *DirectoryHandlerSuite) TestRecordLocationRejectsBadInput() {
	rec := s.do(http.MethodPost, "/locations", RecordLocationRequest{PatientID: "P-1", HospitalID: "H1", ClinicalStatus: "sleepy"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/locations", map[string]string{"patient_id": "P-1"})
	s.Equal(http.StatusBadRequest, rec.Code, "hospital_id is required")

	rec = s.do(http.MethodPost, "/locations", map[string]string{"patient_id": "P-1", "hospital_id": "H1", "extra": "x"})
	s.Equal(http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func (s *DirectoryHandlerSuite) TestRecordLocationMapsDomainErrors() {
	s.service.EXPECT().
		RecordLocation(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeHospitalNotRegistered, "hospital H9 is not active"))

	rec := s.do(http.MethodPost, "/locations", RecordLocationRequest{PatientID: "P-1", HospitalID: "H9"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(rec.Body.String(), "hospital H9 is not active")
}

func (s *DirectoryHandlerSuite) TestGetLocationNotFound() {
	s.service.EXPECT().GetLocation(gomock.Any(), domain.PatientID("P-404")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "patient not found"))

	rec := s.do(http.MethodGet, "/patients/P-404/location", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *DirectoryHandlerSuite) TestTransfer() {
	s.service.EXPECT().
		Transfer(gomock.Any(), domain.PatientID("P-1"), domain.HospitalID("H1"), domain.HospitalID("H2"), "surgery").
		Return(&models.LocationRecord{PatientID: "P-1", HospitalID: "H2"}, nil)

	rec := s.do(http.MethodPost, "/patients/P-1/transfer", TransferRequest{FromHospitalID: "H1", ToHospitalID: "H2", Reason: "surgery"})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *DirectoryHandlerSuite) TestPatientsAtHospitalIncludeTerminal() {
	s.service.EXPECT().PatientsAtHospital(gomock.Any(), domain.HospitalID("H1"), true).
		Return([]*models.LocationRecord{{PatientID: "P-1"}}, nil)
	rec := s.do(http.MethodGet, "/hospitals/H1/patients?include_terminal=true", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/hospitals/H1/patients?include_terminal=maybe", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *DirectoryHandlerSuite) TestDistribution() {
	s.service.EXPECT().HospitalDistribution(gomock.Any()).
		Return([]hmodels.Distribution{{HospitalID: "H1", CurrentPatients: 3}}, nil)

	rec := s.do(http.MethodGet, "/hospitals/distribution", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"current_patient_count":3`)
}

func (s *DirectoryHandlerSuite) TestBroadcastRejectsBadPhotoID() {
	bad := "not-a-uuid"
	rec := s.do(http.MethodPost, "/broadcasts/missing-person", BroadcastRequest{PatientID: "P-1", Description: "red jacket", PhotoID: &bad})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *DirectoryHandlerSuite) TestBroadcastUnidentified() {
	s.service.EXPECT().BroadcastUnidentified(gomock.Any(), domain.PatientID("TAG-7"), "adult male", (*domain.PhotoID)(nil)).
		Return(&models.BroadcastResult{Created: 2}, nil)

	rec := s.do(http.MethodPost, "/broadcasts/unidentified", BroadcastRequest{PatientID: "TAG-7", Description: "adult male"})
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"created":2`)
}

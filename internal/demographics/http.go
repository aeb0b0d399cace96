package demographics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// HTTPClient reads the hospital information system's demographics API.
// GET /v1/patients/{id} returns the patient and GET
// /v1/patients/{id}/contacts returns {"contacts": [...]}.
type HTTPClient struct {
	client *resty.Client
}

type contactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

func NewHTTPClient(baseURL string) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(1).
		SetHeader("Accept", "application/json")
	return &HTTPClient{client: client}
}

func (c *HTTPClient) Lookup(ctx context.Context, patientID domain.PatientID) (*Patient, error) {
	var out Patient
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/patients/" + url.PathEscape(patientID.String()))
	if err != nil {
		return nil, fmt.Errorf("demographics lookup: %w: %v", sentinel.ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("patient %s: %w", patientID, sentinel.ErrNotFound)
	case resp.IsError():
		return nil, fmt.Errorf("demographics lookup returned %d: %w", resp.StatusCode(), sentinel.ErrUnavailable)
	}
	if out.ID == "" {
		out.ID = patientID
	}
	return &out, nil
}

func (c *HTTPClient) Contacts(ctx context.Context, patientID domain.PatientID) ([]Contact, error) {
	var out contactsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/patients/" + url.PathEscape(patientID.String()) + "/contacts")
	if err != nil {
		return nil, fmt.Errorf("demographics contacts: %w: %v", sentinel.ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, nil
	case resp.IsError():
		return nil, fmt.Errorf("demographics contacts returned %d: %w", resp.StatusCode(), sentinel.ErrUnavailable)
	}
	return consentedOnly(out.Contacts), nil
}

package extractor

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"reunite/internal/facematch/models"
	dErrors "reunite/pkg/domain-errors"
)

// HTTPClient calls an embedding model served over HTTP. POST /v1/extract
// takes the raw image bytes and answers with {"faces": [...]}, one entry
// per detected face carrying its 128-float vector, area and quality.
type HTTPClient struct {
	client *resty.Client
}

type extractResponse struct {
	Faces []Face `json:"faces"`
}

// NewHTTPClient builds a client for the model at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPClient{client: client}
}

func (c *HTTPClient) Extract(ctx context.Context, image []byte) (Extraction, error) {
	if len(image) == 0 {
		return Extraction{}, dErrors.New(dErrors.CodeInvalidInput, "image is empty")
	}
	var out extractResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(&out).
		Post("/v1/extract")
	if err != nil {
		return Extraction{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "face extractor unreachable")
	}
	switch {
	case resp.StatusCode() == http.StatusUnprocessableEntity:
		return Extraction{}, dErrors.New(dErrors.CodeInvalidInput, "image could not be decoded")
	case resp.IsError():
		return Extraction{}, dErrors.Newf(dErrors.CodeUnavailable, "face extractor returned %d", resp.StatusCode())
	}
	if len(out.Faces) == 0 {
		return Extraction{}, ErrNoFace()
	}
	for _, f := range out.Faces {
		if err := models.Vector(f.Vector).Validate(); err != nil {
			return Extraction{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "face extractor returned a malformed embedding")
		}
	}
	return Extraction{Faces: out.Faces}, nil
}

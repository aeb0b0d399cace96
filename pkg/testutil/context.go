package testutil

import (
	"net/http"
	"time"

	"reunite/pkg/requestcontext"
)

// WithOperator sets the operator identity the auth middleware would have
// placed on an authenticated request.
func WithOperator(req *http.Request, operator string) *http.Request {
	return req.WithContext(requestcontext.WithOperatorID(req.Context(), operator))
}

// AtTime pins the request-scoped clock.
func AtTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

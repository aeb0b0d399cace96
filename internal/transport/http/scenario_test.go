package httptransport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"reunite/pkg/testutil"
)

func TestRouterScenarios(t *testing.T) {
	testutil.Given(t, "the API router", func(t *testing.T) {
		router := newTestRouter()

		testutil.When(t, "a request carries no token", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/ping"))

			testutil.Then(t, "it is rejected as unauthorized", func(t *testing.T) {
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		})

		testutil.When(t, "a clinician calls a coordinator route", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/ping", nil), "clin")
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "it is forbidden", func(t *testing.T) {
				assert.Equal(t, http.StatusForbidden, rec.Code)
			})
		})

		testutil.When(t, "a path is not routed", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v2/anything"))

			testutil.Then(t, "it answers with a JSON not_found", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
			})
		})
	})
}

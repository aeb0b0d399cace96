package demographics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/pkg/platform/sentinel"
)

func TestDisplayName_Fallbacks(t *testing.T) {
	ctx := context.Background()
	mem := NewInMemory()
	mem.PutPatient(Patient{ID: "P-1", Name: "Thandi Mokoena"})
	mem.PutPatient(Patient{ID: "P-2", Name: "  "})

	assert.Equal(t, "Thandi Mokoena", DisplayName(ctx, mem, "P-1"))
	assert.Equal(t, "Patient P-2", DisplayName(ctx, mem, "P-2"))
	assert.Equal(t, "Patient P-9", DisplayName(ctx, mem, "P-9"))
	assert.Equal(t, "Patient P-9", DisplayName(ctx, nil, "P-9"))
}

func TestInMemory_ContactsAreConsentedOnly(t *testing.T) {
	mem := NewInMemory()
	mem.PutContacts("P-1",
		Contact{ID: "C-1", Phone: "+27821234567", Consented: true},
		Contact{ID: "C-2", Phone: "+27829999999"},
	)
	contacts, err := mem.Contacts(context.Background(), "P-1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "C-1", contacts[0].ID)
}

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/patients/P-1":
			_, _ = w.Write([]byte(`{"patient_id":"P-1","name":"Sipho"}`))
		case "/v1/patients/P-1/contacts":
			_, _ = w.Write([]byte(`{"contacts":[{"contact_id":"C-1","phone":"+27821234567","consented":true},{"contact_id":"C-2","consented":false}]}`))
		case "/v1/patients/P-5":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	client := NewHTTPClient(srv.URL)
	ctx := context.Background()

	p, err := client.Lookup(ctx, "P-1")
	require.NoError(t, err)
	assert.Equal(t, "Sipho", p.DisplayName())

	contacts, err := client.Contacts(ctx, "P-1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	_, err = client.Lookup(ctx, "P-2")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	_, err = client.Lookup(ctx, "P-5")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))

	none, err := client.Contacts(ctx, "P-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmodels "reunite/internal/directory/models"
	"reunite/internal/notify/models"
	dErrors "reunite/pkg/domain-errors"
)

type capturedPublish struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	published []capturedPublish
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	f.published = append(f.published, capturedPublish{topic: topic, payload: payload})
	return nil
}

func TestRouter(t *testing.T) {
	sms := NewRecording()
	radio := NewRecording()
	router := NewRouter().Handle(sms, models.ChannelSMS, models.ChannelEmail).Handle(radio, models.ChannelRadio)
	ctx := context.Background()

	require.NoError(t, router.Send(ctx, models.ChannelSMS, "+27821234567", "hi"))
	require.NoError(t, router.Send(ctx, models.ChannelRadio, "H1", "nearby"))
	assert.Len(t, sms.Sent(), 1)
	assert.Len(t, radio.Sent(), 1)

	err := NewRouter().Send(ctx, models.ChannelSMS, "x", "y")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDeliveryFailed))
}

func TestRecording_Fail(t *testing.T) {
	r := NewRecording()
	r.Fail(1)
	assert.Error(t, r.Send(context.Background(), models.ChannelSMS, "a", "b"))
	assert.NoError(t, r.Send(context.Background(), models.ChannelSMS, "a", "b"))
	assert.Len(t, r.Sent(), 1)
}

func TestGateway(t *testing.T) {
	var got gatewayMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		if got.To == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid number"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	gw := NewGateway(srv.URL, "key")

	require.NoError(t, gw.Send(context.Background(), models.ChannelSMS, "+27821234567", "hello"))
	assert.Equal(t, models.ChannelSMS, got.Channel)
	assert.Equal(t, "hello", got.Body)

	err := gw.Send(context.Background(), models.ChannelSMS, "bad", "hello")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDeliveryFailed))
	assert.Contains(t, err.Error(), "invalid number")
}

func TestRadio(t *testing.T) {
	pub := &fakePublisher{}
	radio := NewRadio(pub, "reunite/radio")

	require.NoError(t, radio.Send(context.Background(), models.ChannelRadio, "H2", "Family nearby"))
	require.NoError(t, radio.Relay(context.Background(), &dmodels.Broadcast{HospitalID: "H3", PatientID: "P-1"}))

	require.Len(t, pub.published, 2)
	assert.Equal(t, "reunite/radio/H2", pub.published[0].topic)
	assert.Equal(t, "reunite/radio/H3/broadcasts", pub.published[1].topic)
	var msg radioMessage
	require.NoError(t, json.Unmarshal(pub.published[0].payload, &msg))
	assert.Equal(t, "Family nearby", msg.Body)
}

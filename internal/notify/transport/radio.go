package transport

import (
	"context"
	"encoding/json"
	"time"

	dmodels "reunite/internal/directory/models"
	"reunite/internal/notify/models"
	dErrors "reunite/pkg/domain-errors"
)

// Publisher is the MQTT client surface used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type radioMessage struct {
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// Radio publishes messages to a hospital's radio/display topic,
// <prefix>/<hospital_id>. For radio rows the recipient is a hospital id.
type Radio struct {
	publisher Publisher
	prefix    string
}

func NewRadio(publisher Publisher, prefix string) *Radio {
	return &Radio{publisher: publisher, prefix: prefix}
}

func (r *Radio) Send(ctx context.Context, channel models.Channel, recipient, message string) error {
	payload, err := json.Marshal(radioMessage{Kind: string(channel), Recipient: recipient, Body: message, SentAt: time.Now().UTC()})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode radio message")
	}
	if err := r.publisher.Publish(ctx, r.prefix+"/"+recipient, payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "radio publish failed")
	}
	return nil
}

// Relay implements the directory's broadcast relay by publishing each
// broadcast to its target hospital's topic.
func (r *Radio) Relay(ctx context.Context, b *dmodels.Broadcast) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode broadcast")
	}
	if err := r.publisher.Publish(ctx, r.prefix+"/"+b.HospitalID.String()+"/broadcasts", payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "broadcast relay failed")
	}
	return nil
}

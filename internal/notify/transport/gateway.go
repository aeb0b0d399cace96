package transport

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"reunite/internal/notify/models"
	dErrors "reunite/pkg/domain-errors"
)

// Gateway posts SMS and e-mail to a messaging gateway as JSON
// {channel, to, body} on POST /v1/messages.
type Gateway struct {
	client *resty.Client
}

type gatewayMessage struct {
	Channel models.Channel `json:"channel"`
	To      string         `json:"to"`
	Body    string         `json:"body"`
}

type gatewayError struct {
	Error string `json:"error"`
}

func NewGateway(baseURL, apiKey string) *Gateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Gateway{client: client}
}

func (g *Gateway) Send(ctx context.Context, channel models.Channel, recipient, message string) error {
	var failure gatewayError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(gatewayMessage{Channel: channel, To: recipient, Body: message}).
		SetError(&failure).
		Post("/v1/messages")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "messaging gateway unreachable")
	}
	if resp.IsError() {
		if failure.Error != "" {
			return dErrors.Newf(dErrors.CodeDeliveryFailed, "gateway rejected %s message: %s", channel, failure.Error)
		}
		return dErrors.Newf(dErrors.CodeDeliveryFailed, "gateway returned %d", resp.StatusCode())
	}
	return nil
}

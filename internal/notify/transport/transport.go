// Package transport delivers notification messages over SMS, e-mail and
// hospital radio.
package transport

import (
	"context"
	"fmt"
	"sync"

	"reunite/internal/notify/models"
	dErrors "reunite/pkg/domain-errors"
)

// Transport sends one message. A nil error means the channel accepted it.
type Transport interface {
	Send(ctx context.Context, channel models.Channel, recipient, message string) error
}

// Router picks a transport by channel.
type Router struct {
	routes map[models.Channel]Transport
}

func NewRouter() *Router {
	return &Router{routes: make(map[models.Channel]Transport)}
}

// Handle registers t for channels.
func (r *Router) Handle(t Transport, channels ...models.Channel) *Router {
	for _, c := range channels {
		r.routes[c] = t
	}
	return r
}

func (r *Router) Send(ctx context.Context, channel models.Channel, recipient, message string) error {
	t, ok := r.routes[channel]
	if !ok {
		return dErrors.Newf(dErrors.CodeDeliveryFailed, "no transport for channel %s", channel)
	}
	return t.Send(ctx, channel, recipient, message)
}

// Sent is a message captured by Recording.
type Sent struct {
	Channel   models.Channel
	Recipient string
	Message   string
}

// Recording captures messages instead of sending them. Fail makes the next
// n sends return an error.
type Recording struct {
	mu       sync.Mutex
	sent     []Sent
	failNext int
}

func NewRecording() *Recording {
	return &Recording{}
}

func (r *Recording) Fail(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
}

func (r *Recording) Send(_ context.Context, channel models.Channel, recipient, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return fmt.Errorf("simulated %s outage", channel)
	}
	r.sent = append(r.sent, Sent{Channel: channel, Recipient: recipient, Message: message})
	return nil
}

func (r *Recording) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

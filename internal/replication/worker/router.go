package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"reunite/internal/replication/outbox"
	dErrors "reunite/pkg/domain-errors"
)

// Handler merges one replicated entry into local state.
type Handler interface {
	Handle(ctx context.Context, entry *outbox.Entry) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, entry *outbox.Entry) error

func (f HandlerFunc) Handle(ctx context.Context, entry *outbox.Entry) error {
	return f(ctx, entry)
}

// Decode returns a handler that unmarshals the payload into T before
// passing it to apply.
func Decode[T any](apply func(context.Context, *T) error) Handler {
	return HandlerFunc(func(ctx context.Context, entry *outbox.Entry) error {
		var v T
		if err := json.Unmarshal(entry.Payload, &v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode "+string(entry.EntityType)+" payload")
		}
		return apply(ctx, &v)
	})
}

// Router dispatches entries to entity-specific handlers.
type Router struct {
	handlers map[outbox.EntityType]Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[outbox.EntityType]Handler),
		logger:   logger,
	}
}

// Register adds the handler for an entity type.
func (r *Router) Register(entityType outbox.EntityType, handler Handler) {
	r.handlers[entityType] = handler
}

// Handle routes the entry to its handler. Entries nobody handles are
// skipped so they do not block the log.
func (r *Router) Handle(ctx context.Context, entry *outbox.Entry) (bool, error) {
	handler, ok := r.handlers[entry.EntityType]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for entity type, skipping entry",
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
		)
		return false, nil
	}
	return true, handler.Handle(ctx, entry)
}

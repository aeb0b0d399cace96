// Package hub carries outbox entries between hospitals. Every node publishes
// its own entries and reads every node's entries, its own included; reading
// back an own entry is the acknowledgement that the hub has it.
package hub

import (
	"context"

	"reunite/internal/replication/outbox"
)

// Hub is one node's connection to the shared replication log.
type Hub interface {
	// Publish hands entries to the hub. It fails with a sentinel.ErrUnavailable
	// wrapped error when the hub cannot be reached.
	Publish(ctx context.Context, entries []*outbox.Entry) error
	// Poll returns entries not yet committed by this node, in hub order.
	Poll(ctx context.Context) ([]*outbox.Entry, error)
	// Commit marks everything returned by the last Poll as consumed.
	Commit(ctx context.Context) error
}

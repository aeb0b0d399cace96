// Package reconcile is the manual reconciliation queue: replicated writes
// that tied on clock with different values wait here for an operator.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reunite/pkg/domain"
)

// Item is one unresolved field conflict.
type Item struct {
	ID           domain.ReconciliationID `json:"id"`
	EntityType   string                  `json:"entity_type"`
	EntityID     string                  `json:"entity_id"`
	Field        string                  `json:"field"`
	LocalValue   string                  `json:"local_value"`
	RemoteValue  string                  `json:"remote_value"`
	LocalOrigin  domain.HospitalID       `json:"local_origin"`
	RemoteOrigin domain.HospitalID       `json:"remote_origin"`
	ObservedAt   time.Time               `json:"observed_at"`
	Resolved     bool                    `json:"resolved"`
}

// NewItem builds an unresolved item.
func NewItem(entityType, entityID, field, local, remote string, localOrigin, remoteOrigin domain.HospitalID, now time.Time) *Item {
	return &Item{
		ID:           domain.ReconciliationID(uuid.New()),
		EntityType:   entityType,
		EntityID:     entityID,
		Field:        field,
		LocalValue:   local,
		RemoteValue:  remote,
		LocalOrigin:  localOrigin,
		RemoteOrigin: remoteOrigin,
		ObservedAt:   now,
	}
}

type Store interface {
	Enqueue(ctx context.Context, items ...*Item) error
	ListUnresolved(ctx context.Context, limit int) ([]*Item, error)
	Resolve(ctx context.Context, id domain.ReconciliationID) error
}

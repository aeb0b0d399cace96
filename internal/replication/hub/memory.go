package hub

import (
	"context"
	"fmt"
	"sync"

	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

// Network is an in-process hub shared by several nodes. Nodes can be cut off
// individually to simulate a partition.
type Network struct {
	mu      sync.Mutex
	log     []*outbox.Entry
	offline map[domain.HospitalID]bool
}

func NewNetwork() *Network {
	return &Network{offline: make(map[domain.HospitalID]bool)}
}

// SetOffline cuts a node off from the hub or reconnects it.
func (n *Network) SetOffline(id domain.HospitalID, offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline[id] = offline
}

// Len is the number of entries the hub holds.
func (n *Network) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.log)
}

// Endpoint connects a node to the network.
func (n *Network) Endpoint(id domain.HospitalID) *Endpoint {
	return &Endpoint{network: n, id: id}
}

// Endpoint is one node's view of a Network.
type Endpoint struct {
	network *Network
	id      domain.HospitalID

	mu        sync.Mutex
	committed int
	polled    int
}

func (e *Endpoint) reachable() error {
	if e.network.offline[e.id] {
		return fmt.Errorf("hub unreachable from %s: %w", e.id, sentinel.ErrUnavailable)
	}
	return nil
}

func (e *Endpoint) Publish(_ context.Context, entries []*outbox.Entry) error {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	if err := e.reachable(); err != nil {
		return err
	}
	for _, entry := range entries {
		cp := *entry
		e.network.log = append(e.network.log, &cp)
	}
	return nil
}

func (e *Endpoint) Poll(_ context.Context) ([]*outbox.Entry, error) {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	if err := e.reachable(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.network.log[e.committed:]
	out := make([]*outbox.Entry, 0, len(pending))
	for _, entry := range pending {
		cp := *entry
		out = append(out, &cp)
	}
	e.polled = len(e.network.log)
	return out, nil
}

func (e *Endpoint) Commit(_ context.Context) error {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	if err := e.reachable(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.committed = e.polled
	return nil
}

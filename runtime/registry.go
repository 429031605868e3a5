package runtime

import (
	"bot-bridge/contract"
	"bot-bridge/domain"
	"slices"
	"sync"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps open connections to the sink delivering their events.
// Connections are kept in registration order so fan-out is deterministic.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]contract.EventSink
	order    []domain.ConnectionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]contract.EventSink),
	}
}

// Register stores the sink of a connection, replacing a previous one.
func (r *Registry) Register(conn domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[conn]; !ok {
		r.order = append(r.order, conn)
	}
	r.sessions[conn] = sink
}

// Unregister removes the connection and reports whether it was known.
func (r *Registry) Unregister(conn domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[conn]; !ok {
		return false
	}
	delete(r.sessions, conn)
	if i := slices.Index(r.order, conn); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return true
}

func (r *Registry) Sink(conn domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sessions[conn]
	return sink, ok
}

// Connections returns a copy of the open connections in registration order.
func (r *Registry) Connections() []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

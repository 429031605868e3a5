package domain

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ConnectionID identifies one transport-level session.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// PresenceTracker keeps the set of online identities. Presence is reference
// counted by connection: an identity stays online while at least one
// connection is bound to it.
//
// PresenceTracker is not safe for concurrent use; the hub owns it.
type PresenceTracker struct {
	registry *IdentityRegistry
	bindings map[ConnectionID]string
	counts   map[string]int
	order    []string
}

func NewPresenceTracker(registry *IdentityRegistry) *PresenceTracker {
	return &PresenceTracker{
		registry: registry,
		bindings: make(map[ConnectionID]string),
		counts:   make(map[string]int),
	}
}

// Join binds the connection to userKey. first is true only when this is the
// first connection of that identity. Joining again with the key the
// connection is already bound to changes nothing. A connection bound to
// another key must Leave first.
func (p *PresenceTracker) Join(conn ConnectionID, userKey string) (UserIdentity, bool, error) {
	identity, err := p.registry.Resolve(userKey)
	if err != nil {
		return UserIdentity{}, false, err
	}
	if bound, ok := p.bindings[conn]; ok && bound == identity.Key {
		return identity, false, nil
	}
	p.bindings[conn] = identity.Key
	p.counts[identity.Key]++
	first := p.counts[identity.Key] == 1
	if first {
		p.order = append(p.order, identity.Key)
	}
	return identity, first, nil
}

// Leave unbinds the connection. last is true when no other connection is
// bound to the same identity anymore. ok is false for an unbound connection.
func (p *PresenceTracker) Leave(conn ConnectionID) (identity UserIdentity, last bool, ok bool) {
	key, ok := p.bindings[conn]
	if !ok {
		return UserIdentity{}, false, false
	}
	delete(p.bindings, conn)
	identity, _ = p.registry.Resolve(key)

	p.counts[key]--
	if p.counts[key] > 0 {
		return identity, false, true
	}
	delete(p.counts, key)
	p.order = lo.Without(p.order, key)
	return identity, true, true
}

// Bound returns the key a connection joined as.
func (p *PresenceTracker) Bound(conn ConnectionID) (string, bool) {
	key, ok := p.bindings[conn]
	return key, ok
}

// Online reports whether at least one connection is bound to userKey.
func (p *PresenceTracker) Online(userKey string) bool {
	return p.counts[NormalizeKey(userKey)] > 0
}

// Snapshot returns the online identities in the order they came online.
func (p *PresenceTracker) Snapshot() []UserIdentity {
	out := make([]UserIdentity, 0, len(p.order))
	for _, key := range p.order {
		if identity, err := p.registry.Resolve(key); err == nil {
			out = append(out, identity)
		}
	}
	return out
}

// Keys returns the online user keys in the order they came online.
func (p *PresenceTracker) Keys() []string {
	return append([]string(nil), p.order...)
}

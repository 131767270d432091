package runtime

import (
	"collab-live/contract"
	"collab-live/domain"
	"slices"
	"sync"
)

type session struct {
	conn domain.Connection
	sink contract.EventSink
}

// Registry maps live connections to their sinks and identities to their
// active direct-delivery connection. Presence is read from the identity
// index on every call, never cached.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[domain.ConnectionID]session
	identities map[domain.IdentityID]domain.ConnectionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[domain.ConnectionID]session),
		identities: make(map[domain.IdentityID]domain.ConnectionID),
	}
}

// Register records the connection and its sink. When the identity already
// maps to another connection the mapping is overwritten: the last
// registration becomes the target of direct delivery. Anonymous
// connections are kept for room and global delivery only.
func (r *Registry) Register(conn domain.Connection, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[conn.ID] = session{conn: conn, sink: sink}
	if !conn.Identity.IsAnonymous() {
		r.identities[conn.Identity] = conn.ID
	}
}

// Unregister removes the connection and reports whether it was registered.
// The identity entry is only touched when it still points to this
// connection; it then falls back to the most recent remaining connection of
// the same identity, so presence keeps every identity with a live session.
func (r *Registry) Unregister(connID domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	delete(r.sessions, connID)

	identity := s.conn.Identity
	if identity.IsAnonymous() || r.identities[identity] != connID {
		return true
	}

	var (
		fallback domain.Connection
		found    bool
	)
	for _, other := range r.sessions {
		if other.conn.Identity != identity {
			continue
		}
		if !found || other.conn.ConnectedAt.After(fallback.ConnectedAt) {
			fallback, found = other.conn, true
		}
	}
	if found {
		r.identities[identity] = fallback.ID
	} else {
		delete(r.identities, identity)
	}
	return true
}

// Lookup returns the connection direct messages go to. Absent means not
// reachable live, never an error.
func (r *Registry) Lookup(identity domain.IdentityID) (domain.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[identity]
	return id, ok
}

func (r *Registry) Sink(connID domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s.sink, ok
}

// All returns every registered connection, anonymous ones included.
func (r *Registry) All() []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.ConnectionID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Presence returns the sorted set of online identities.
func (r *Registry) Presence() []domain.IdentityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.IdentityID, 0, len(r.identities))
	for id := range r.identities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

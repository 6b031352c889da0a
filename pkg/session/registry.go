// Package session maps (session, role) pairs to live connections so that a
// pipeline can find its counterpart at the moment it delivers output.
package session

import (
	"sync"
	"time"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
)

// Peer is a connection that can receive server events.
type Peer interface {
	ID() string
	Send(event events.ServerEvent) error
}

type entry struct {
	startedAt    time.Time
	participants map[events.Role]Peer
}

// Registry is the single source of truth for session membership.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Register upserts the connection for role in sessionID, creating the session
// on first use. It returns the connection that was displaced, if any.
func (r *Registry) Register(sessionID string, role events.Role, peer Peer) Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		e = &entry{
			startedAt:    r.now(),
			participants: make(map[events.Role]Peer, 2),
		}
		r.sessions[sessionID] = e
	}

	prev := e.participants[role]
	e.participants[role] = peer
	if prev != nil && prev.ID() == peer.ID() {
		return nil
	}
	return prev
}

// Unregister removes whatever connection holds role in sessionID. An empty
// session is dropped. Connection-driven cleanup goes through Release instead,
// since the caller there cannot know whether it still owns the role.
func (r *Registry) Unregister(sessionID string, role events.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID, role)
}

// Release removes role from sessionID only if it is still held by peer. It
// reports whether an entry was removed. Disconnect cleanup uses it so that a
// stale connection never evicts the one that replaced it.
func (r *Registry) Release(sessionID string, role events.Role, peer Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	current, ok := e.participants[role]
	if !ok || current.ID() != peer.ID() {
		return false
	}
	r.removeLocked(sessionID, role)
	return true
}

func (r *Registry) removeLocked(sessionID string, role events.Role) {
	e, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(e.participants, role)
	if len(e.participants) == 0 {
		delete(r.sessions, sessionID)
	}
}

// Lookup returns the connection registered for role.
func (r *Registry) Lookup(sessionID string, role events.Role) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	peer, ok := e.participants[role]
	return peer, ok
}

// LookupPeer returns the connection holding the role opposite to myRole.
// An absent peer is a normal condition.
func (r *Registry) LookupPeer(sessionID string, myRole events.Role) (Peer, bool) {
	return r.Lookup(sessionID, myRole.Opposite())
}

// ListParticipants returns the occupied roles of sessionID in canonical role order.
func (r *Registry) ListParticipants(sessionID string) []events.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return []events.ParticipantInfo{}
	}

	out := make([]events.ParticipantInfo, 0, len(e.participants))
	for _, role := range events.Roles {
		peer, ok := e.participants[role]
		if !ok {
			continue
		}
		out = append(out, events.ParticipantInfo{
			Role:         role,
			ConnectionID: peer.ID(),
			Connected:    true,
		})
	}
	return out
}

// StartedAt returns when sessionID was created.
func (r *Registry) StartedAt(sessionID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return time.Time{}, false
	}
	return e.startedAt, true
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

package mcp

import "sync"

// SessionRegistry maps subscriber IDs to MCP session IDs.
// Populated when clients call flowgraph.subscribe.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // subscriberID → sessionID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates a subscriber ID with a session ID.
// If the subscriber already has a session, it is overwritten (reconnect).
func (r *SessionRegistry) Register(subscriberID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[subscriberID] = sessionID
}

// SessionFor returns the session ID for the given subscriber, if connected.
func (r *SessionRegistry) SessionFor(subscriberID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[subscriberID]
	return sid, ok
}

// SessionIDs returns the distinct registered session IDs.
func (r *SessionRegistry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.sessions))
	out := make([]string, 0, len(r.sessions))
	for _, sid := range r.sessions {
		if !seen[sid] {
			seen[sid] = true
			out = append(out, sid)
		}
	}
	return out
}

// Remove deletes all subscriber mappings for the given session ID.
// Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, id)
		}
	}
}

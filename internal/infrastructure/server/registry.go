package server

import (
	"sync"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
)

// SessionRegistry tracks live sessions by identity. Add, Remove and Find are
// mutually exclusive; the underlying map is never exposed.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
	}
}

// Add registers a session under its identity.
func (r *SessionRegistry) Add(session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID()]; exists {
		return domain.NewDuplicateIdentityError(session.ID())
	}
	r.sessions[session.ID()] = session
	return nil
}

// Remove unregisters the session with the given identity. It reports whether
// a session was removed; removing an unknown identity is a no-op.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Find returns the session registered under id.
func (r *SessionRegistry) Find(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	return session, ok
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll unregisters every session and then closes it.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, session := range r.sessions {
		session.MarkClosing()
		sessions = append(sessions, session)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

package engine

import (
	"sync"

	"wirebridge/pkg/wirebridge"
)

// Session holds the process-wide current-user record. It is set once per
// authenticated session by the connection manager and patched by user events.
type Session struct {
	mu            sync.RWMutex
	user          wirebridge.User
	authenticated bool
}

// NewSession creates an unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// SetUser binds the current user for a new authenticated session.
func (s *Session) SetUser(user wirebridge.User) {
	s.mu.Lock()
	s.user = user
	s.authenticated = true
	s.mu.Unlock()
}

// User returns the current user record; ok is false when unauthenticated.
func (s *Session) User() (wirebridge.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user, s.authenticated
}

// Patch applies fn to the current-user record and returns the previous
// record. When unauthenticated nothing changes and ok is false.
func (s *Session) Patch(fn func(wirebridge.User) wirebridge.User) (wirebridge.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated {
		return wirebridge.User{}, false
	}
	previous := s.user
	s.user = fn(previous)

	return previous, true
}

// Clear drops the current user at session end.
func (s *Session) Clear() {
	s.mu.Lock()
	s.user = wirebridge.User{}
	s.authenticated = false
	s.mu.Unlock()
}

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/videotube/backend/internal/models"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]models.RefreshSession)}
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.RefreshSession
}

// SaveSession overwrites the slot for userID.
func (s *InMemorySessionStore) SaveSession(_ context.Context, userID string, session models.RefreshSession) error {
	s.mu.Lock()
	s.sessions[userID] = session
	s.mu.Unlock()
	return nil
}

// RotateSession swaps the slot when it still holds presentedID.
func (s *InMemorySessionStore) RotateSession(_ context.Context, userID, presentedID string, next models.RefreshSession, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[userID]
	if !ok || current.TokenID != presentedID || !current.ExpiresAt.After(now) {
		return ErrInvalidSession
	}
	s.sessions[userID] = next
	return nil
}

// ClearSession empties the slot for userID.
func (s *InMemorySessionStore) ClearSession(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// Current returns the slot held for userID. Useful for tests.
func (s *InMemorySessionStore) Current(userID string) (models.RefreshSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	return session, ok
}

var _ SessionStore = (*InMemorySessionStore)(nil)

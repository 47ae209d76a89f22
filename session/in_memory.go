package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/campaignmesh/core"
)

// InMemoryStore keeps sessions in a process local map for the lifetime of
// the process. It is safe for concurrent access. Sessions handed out are
// clones, so callers can never mutate stored history directly.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns a clone of the session, creating an empty one on first use.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if ok {
		return sess.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(sessionID).Clone(), nil
}

// Create stores a fresh session under sessionID, replacing any existing one.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess

	return sess.Clone(), nil
}

// AppendEvent adds an event to the session history. Partial streaming
// fragments are not recorded.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	if ev.IsPartial() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).AddEvent(ev)

	return nil
}

// ApplyDelta merges a committed run delta into the session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).ApplyStateDelta(delta)

	return nil
}

// Delete drops a session. Deleting an unknown session is a no-op.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// getOrCreateLocked requires the write lock.
func (s *InMemoryStore) getOrCreateLocked(sessionID string) *core.Session {
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = core.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}

	return sess
}

package core

import (
	"maps"
	"sync"
	"time"
)

// Session is a conversation container: the state committed by completed
// runs plus the ordered event history. Safe for concurrent access.
type Session struct {
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// StateSnapshot returns a copy of the committed state.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.State)
}

// ApplyStateDelta merges delta into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.State, delta)
	s.Updated = time.Now()
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the event history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.Events))
	copy(events, s.Events)

	return events
}

// GetConversationHistory returns the user/assistant/tool events suitable as
// model context. Partial fragments and error events are skipped.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Event, 0, len(s.Events))

	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() || ev.IsError() {
			continue
		}

		switch ev.Content.Role {
		case RoleUser, RoleAssistant, RoleTool:
			res = append(res, ev)
		}
	}

	return res
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Session{
		ID:      s.ID,
		State:   maps.Clone(s.State),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	copy(clone.Events, s.Events)

	return clone
}

// SessionStore keeps sessions for the lifetime of the process.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
}

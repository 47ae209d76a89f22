package core

import (
	"context"
	"maps"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...any) {}
func (l testLogger) Info(string, ...any)  {}
func (l testLogger) Warn(string, ...any)  {}
func (l testLogger) Error(string, ...any) {}

type rcMockSessionStore struct {
	applied map[string]map[string]any
}

func (s *rcMockSessionStore) Get(id string) (*Session, error)       { return NewSession(id), nil }
func (s *rcMockSessionStore) Create(id string) (*Session, error)    { return NewSession(id), nil }
func (s *rcMockSessionStore) AppendEvent(id string, ev Event) error { return nil }
func (s *rcMockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	if s.applied == nil {
		s.applied = map[string]map[string]any{}
	}
	s.applied[id] = maps.Clone(delta)
	return nil
}

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	sess := NewSession("sess-x")
	store := &rcMockSessionStore{}
	rc := NewRunContext(context.Background(), "sess-x", "run-x", NewTextContent(RoleUser, "hi"), 0, emit, sess, store, NewState(map[string]any{"seed": "v"}), testLogger{})
	return rc.WithAgent(AgentInfo{Name: "Agent1", Type: "model"}), emit
}

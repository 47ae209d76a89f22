package core

import (
	"maps"
	"slices"
	"sync"
)

// State is the run-scoped key/value store threaded through a composition
// tree. Values are replaced per key, never mutated in place.
//
// A State remembers which keys were written through it (Delta). Forks start
// from a snapshot of their parent and record their own writes only, which is
// how parallel branches are isolated from each other until the group merges.
type State struct {
	mu      sync.RWMutex
	values  map[string]any
	written map[string]struct{}
}

// NewState creates a State seeded with a copy of seed. Seed keys do not
// count as writes.
func NewState(seed map[string]any) *State {
	values := make(map[string]any, len(seed))
	maps.Copy(values, seed)

	return &State{values: values, written: map[string]struct{}{}}
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Set stores value under key and records the write.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	s.written[key] = struct{}{}
}

// Snapshot returns a copy of every key currently visible.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.values)
}

// Keys returns the visible keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of visible keys.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

// Fork returns an independent State seeded from the current snapshot.
// Writes to the fork are invisible to s until merged back.
func (s *State) Fork() *State {
	return NewState(s.Snapshot())
}

// Delta returns the keys written through this State with their current values.
func (s *State) Delta() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delta := make(map[string]any, len(s.written))
	for k := range s.written {
		delta[k] = s.values[k]
	}

	return delta
}

// Merge applies delta under a single lock so observers see either none or
// all of it. Merged keys are recorded as writes.
func (s *State) Merge(delta map[string]any) {
	if len(delta) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range delta {
		s.values[k] = v
		s.written[k] = struct{}{}
	}
}

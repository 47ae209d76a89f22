package artifact

import (
	"slices"
	"sync"
)

// InMemoryStore keeps artifacts in a nested map guarded by an RWMutex.
// Data is copied on save and on retrieval.
//
// Layout: sessionID -> name -> raw bytes
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// Save stores or overwrites the artifact for the given session and name.
func (a *InMemoryStore) Save(sessionID, name string, data []byte) error {
	if err := checkName(sessionID, name); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.artifacts[sessionID]; !exists {
		a.artifacts[sessionID] = make(map[string][]byte)
	}

	a.artifacts[sessionID][name] = slices.Clone(data)

	return nil
}

// Get returns a copy of the stored bytes or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.artifacts[sessionID][name]
	if !ok {
		return nil, ErrNotFound
	}

	return slices.Clone(data), nil
}

// List returns the sorted artifact names of the session.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.artifacts[sessionID]))
	for name := range a.artifacts[sessionID] {
		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}

// Delete removes the artifact or returns ErrNotFound.
func (a *InMemoryStore) Delete(sessionID, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.artifacts[sessionID]
	if !ok {
		return ErrNotFound
	}

	if _, ok := m[name]; !ok {
		return ErrNotFound
	}

	delete(m, name)

	return nil
}

var _ Store = (*InMemoryStore)(nil)

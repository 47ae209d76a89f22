package tool

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/campaignmesh/core"
)

// Registry maps tool names to tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	if err := r.Register(tools...); err != nil {
		return nil, err
	}

	return r, nil
}

// Register adds tools. Names must be non-empty and unique.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return fmt.Errorf("tool name must not be empty")
		}

		if _, exists := r.tools[t.Name()]; exists {
			return fmt.Errorf("tool %q already registered", t.Name())
		}

		r.tools[t.Name()] = t
	}

	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Select returns the tools named in names, in that order. Unknown names are
// reported together as core.ErrUnknownTool.
func (r *Registry) Select(names ...string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make([]Tool, 0, len(names))

	var unknown []string

	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}

		selected = append(selected, t)
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTool, strings.Join(unknown, ", "))
	}

	return selected, nil
}

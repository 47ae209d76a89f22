package core

import (
	"fmt"
	"sync"
)

// ModelLimiter caps the number of model calls made during one run. It is
// shared by every agent of a composition tree, parallel branches included.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a limiter. max <= 0 means unlimited.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment records one model call and fails once the cap is exceeded.
func (ml *ModelLimiter) Increment() error {
	if ml == nil {
		return nil
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.count++
	if ml.max > 0 && ml.count > ml.max {
		return fmt.Errorf("%w: %d", ErrModelCallLimit, ml.max)
	}

	return nil
}

// Count returns the number of calls recorded so far.
func (ml *ModelLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max <= 0 {
		return -1
	}

	if ml.count >= ml.max {
		return 0
	}

	return ml.max - ml.count
}

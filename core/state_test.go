package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_SeedIsNotDelta(t *testing.T) {
	s := NewState(map[string]any{"research_data": "X"})
	assert.Empty(t, s.Delta())

	s.Set("social_content", "post")
	assert.Equal(t, map[string]any{"social_content": "post"}, s.Delta())
	assert.Equal(t, []string{"research_data", "social_content"}, s.Keys())
}

func TestState_SnapshotIsCopy(t *testing.T) {
	s := NewState(map[string]any{"a": 1})
	snap := s.Snapshot()
	snap["a"] = 2

	v, _ := s.Get("a")
	assert.Equal(t, 1, v)
}

func TestState_ForkAndMerge(t *testing.T) {
	parent := NewState(map[string]any{"research_data": "X"})
	a := parent.Fork()
	b := parent.Fork()

	a.Set("email_content", "mail")
	b.Set("ad_content", "ad")

	_, seen := a.Get("ad_content")
	assert.False(t, seen, "siblings must not observe each other")

	parent.Merge(a.Delta())
	parent.Merge(b.Delta())

	assert.Equal(t, map[string]any{
		"research_data": "X",
		"email_content": "mail",
		"ad_content":    "ad",
	}, parent.Snapshot())
	assert.Len(t, parent.Delta(), 2)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState(nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(fmt.Sprintf("k%d", i), i)
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
}

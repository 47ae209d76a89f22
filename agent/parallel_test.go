package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/model"
)

// delayedModel answers after d, or fails when ctx ends first.
func delayedModel(d time.Duration, text string) model.Model {
	return model.Func{Name: "delayed", Fn: func(ctx context.Context, _ model.Request) (model.Response, error) {
		select {
		case <-time.After(d):
			return model.Response{Content: core.NewTextContent(core.RoleAssistant, text)}, nil
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		}
	}}
}

func contentCreators(t *testing.T, optFns ...func(o *ParallelAgentOptions)) *ParallelAgent {
	t.Helper()

	p, err := NewParallelAgent("ContentCreators", []Node{
		leaf("SocialMediaExpert", "Social posts from {{research_data}}", "social_content", delayedModel(30*time.Millisecond, "social")),
		leaf("EmailExpert", "Emails from {{research_data}}", "email_content", delayedModel(10*time.Millisecond, "email")),
		leaf("AdExpert", "Ads from {{research_data}}", "ad_content", delayedModel(20*time.Millisecond, "ads")),
	}, optFns...)
	require.NoError(t, err)

	return p
}

func TestParallelAgent_MergesAllOutputs(t *testing.T) {
	p := contentCreators(t)

	rc, _ := newTestRunContext(context.Background(), map[string]any{"research_data": "X"})

	res, err := p.Run(rc)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"research_data":  "X",
		"social_content": "social",
		"email_content":  "email",
		"ad_content":     "ads",
	}, rc.State.Snapshot())

	require.Len(t, res.Branches, 3)
	assert.Equal(t, "SocialMediaExpert", res.Branches[0].Author)
	assert.Equal(t, "AdExpert", res.Branches[2].Author)
	assert.Equal(t, "social\n\nemail\n\nads", res.Text)
	assert.ElementsMatch(t, []string{"social_content", "email_content", "ad_content"}, keysOf(rc.State.Delta()))
}

func TestParallelAgent_RunsConcurrently(t *testing.T) {
	children := make([]Node, 0, 4)
	for _, name := range []string{"A", "B", "C", "D"} {
		children = append(children, leaf(name, "x", name, delayedModel(60*time.Millisecond, name)))
	}

	p, err := NewParallelAgent("Group", children)
	require.NoError(t, err)

	rc, _ := newTestRunContext(context.Background(), nil)

	start := time.Now()
	_, err = p.Run(rc)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestParallelAgent_BranchesSeePreGroupSnapshotOnly(t *testing.T) {
	var sawSibling atomic.Bool

	peek := model.Func{Fn: func(context.Context, model.Request) (model.Response, error) {
		time.Sleep(20 * time.Millisecond)
		return model.Response{Content: core.NewTextContent(core.RoleAssistant, "peek")}, nil
	}}

	writer := leaf("Writer", "x", "written", model.Func{Fn: func(context.Context, model.Request) (model.Response, error) {
		return model.Response{Content: core.NewTextContent(core.RoleAssistant, "w")}, nil
	}})

	reader := NewModelAgent("Reader", peek, func(o *ModelAgentOptions) {
		o.OutputKey = "read"
		o.Instruction = NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
			time.Sleep(10 * time.Millisecond)

			if _, ok := rc.GetState("written"); ok {
				sawSibling.Store(true)
			}

			return "read", nil
		})
	})

	p, err := NewParallelAgent("Group", []Node{writer, reader})
	require.NoError(t, err)

	rc, events := newTestRunContext(context.Background(), nil)

	_, err = p.Run(rc)
	require.NoError(t, err)
	assert.False(t, sawSibling.Load())

	branches := map[string]bool{}

	for _, ev := range collect(events) {
		if ev.Branch != nil {
			branches[*ev.Branch] = true
		}
	}

	assert.Equal(t, map[string]bool{"Group.Writer": true, "Group.Reader": true}, branches)
}

func TestParallelAgent_CollectsAllErrorsAndMergesNothing(t *testing.T) {
	var finished atomic.Int32

	slowOK := model.Func{Fn: func(context.Context, model.Request) (model.Response, error) {
		time.Sleep(30 * time.Millisecond)
		finished.Add(1)

		return model.Response{Content: core.NewTextContent(core.RoleAssistant, "ok")}, nil
	}}

	p, err := NewParallelAgent("Group", []Node{
		leaf("Fails1", "x", "one", failingModel("boom one")),
		leaf("Succeeds", "x", "two", slowOK),
		leaf("Fails2", "needs {{absent}}", "three", echoModel("x")),
	})
	require.NoError(t, err)

	rc, _ := newTestRunContext(context.Background(), map[string]any{"seed": 1})

	_, err = p.Run(rc)

	var pErr *core.ParallelError
	require.ErrorAs(t, err, &pErr)
	require.Len(t, pErr.Failures, 2)
	assert.Equal(t, "Fails1", pErr.Failures[0].Branch)
	assert.Equal(t, "Fails2", pErr.Failures[1].Branch)
	assert.ErrorIs(t, err, core.ErrModelInvocation)
	assert.ErrorIs(t, err, core.ErrMissingContextKey)

	assert.Equal(t, int32(1), finished.Load())
	assert.Equal(t, map[string]any{"seed": 1}, rc.State.Snapshot())
	assert.Empty(t, rc.State.Delta())
}

func TestParallelAgent_CancellationMergesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := contentCreators(t)

	rc, _ := newTestRunContext(ctx, map[string]any{"research_data": "X"})

	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	_, err := p.Run(rc)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, map[string]any{"research_data": "X"}, rc.State.Snapshot())
}

func TestParallelAgent_Timeout(t *testing.T) {
	p := contentCreators(t, func(o *ParallelAgentOptions) { o.Timeout = 5 * time.Millisecond })

	rc, _ := newTestRunContext(context.Background(), map[string]any{"research_data": "X"})

	_, err := p.Run(rc)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var pErr *core.ParallelError
	require.ErrorAs(t, err, &pErr)
	assert.Len(t, pErr.Failures, 3)
	assert.Equal(t, 1, rc.State.Len())
}

func TestParallelAgent_MaxConcurrency(t *testing.T) {
	var running, peak atomic.Int32

	gate := model.Func{Fn: func(context.Context, model.Request) (model.Response, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)
		running.Add(-1)

		return model.Response{Content: core.NewTextContent(core.RoleAssistant, "ok")}, nil
	}}

	children := []Node{leaf("A", "x", "", gate), leaf("B", "x", "", gate), leaf("C", "x", "", gate)}

	p, err := NewParallelAgent("Group", children, func(o *ParallelAgentOptions) { o.MaxConcurrency = 1 })
	require.NoError(t, err)

	rc, _ := newTestRunContext(context.Background(), nil)

	_, err = p.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestNewParallelAgent_RejectsDuplicateOutputKeys(t *testing.T) {
	_, err := NewParallelAgent("Group", []Node{
		leaf("A", "x", "content", echoModel("a")),
		leaf("B", "x", "content", echoModel("b")),
	})

	var dErr *core.DuplicateOutputKeyError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "content", dErr.Key)
	assert.Equal(t, []string{"A", "B"}, dErr.Agents)
	assert.ErrorIs(t, err, core.ErrDuplicateOutputKey)
}

func TestNewParallelAgent_RejectsNestedDuplicateOutputKeys(t *testing.T) {
	nested, err := NewSequentialAgent("Nested", leaf("Inner", "x", "summary", echoModel("i")))
	require.NoError(t, err)

	_, err = NewParallelAgent("Group", []Node{nested, leaf("B", "x", "summary", echoModel("b"))})
	require.ErrorIs(t, err, core.ErrDuplicateOutputKey)
}

func TestParallelAgent_NestedSequentialBranch(t *testing.T) {
	branch, err := NewSequentialAgent("Drafting",
		leaf("Drafter", "draft", "draft", echoModel("d")),
		leaf("Editor", "edit {{draft}}", "edited", echoModel("e")),
	)
	require.NoError(t, err)

	p, err := NewParallelAgent("Group", []Node{branch, leaf("Other", "x", "other", echoModel("o"))})
	require.NoError(t, err)

	rc, _ := newTestRunContext(context.Background(), nil)

	_, err = p.Run(rc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"draft", "edited", "other"}, rc.State.Keys())

	v, _ := rc.GetState("edited")
	assert.Equal(t, "e: edit d: draft", v)
}

func TestParallelAgent_WrappedBySequential(t *testing.T) {
	p, err := NewParallelAgent("Group", []Node{leaf("Bad", "x", "", failingModel("down"))})
	require.NoError(t, err)

	seq, err := NewSequentialAgent("Root", leaf("Researcher", "x", "research_data", echoModel("r")), p)
	require.NoError(t, err)

	rc, _ := newTestRunContext(context.Background(), nil)

	_, err = seq.Run(rc)

	var stage *core.StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, "Group", stage.Stage())

	var pErr *core.ParallelError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "Bad", pErr.Failures[0].Branch)
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}

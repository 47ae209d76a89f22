package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/testutil"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/session"
)

func leaf(name, instruction, outputKey string, llm model.Model) *agent.ModelAgent {
	return agent.NewModelAgent(name, llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(instruction)
		o.OutputKey = outputKey
	})
}

func pipeline(t *testing.T) agent.Node {
	t.Helper()

	root, err := agent.NewSequentialAgent("Pipeline",
		leaf("Researcher", "Research {{product}}", "research_results", testutil.EchoModel("r")),
		leaf("Strategist", "Strategy from {{research_results}}", "messaging_strategy", testutil.EchoModel("s")),
	)
	require.NoError(t, err)

	return root
}

func TestRunner_RunSyncCommitsOutputs(t *testing.T) {
	store := session.NewInMemoryStore()
	r := New(pipeline(t), func(o *Options) { o.SessionStore = store })

	out, err := r.RunSync(context.Background(), "s1", "Launch EcoBottle", map[string]any{"product": "EcoBottle"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "Strategist", out.Result.Author)
	assert.Equal(t, "s: Strategy from r: Research EcoBottle", out.Result.Text)
	assert.Equal(t, "r: Research EcoBottle", out.State["research_results"])

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"product":            "EcoBottle",
		"research_results":   "r: Research EcoBottle",
		"messaging_strategy": "s: Strategy from r: Research EcoBottle",
	}, sess.StateSnapshot())

	events := sess.GetEvents()
	require.Len(t, events, 3)
	assert.Equal(t, core.RoleUser, events[0].Author)
	assert.Equal(t, "Researcher", events[1].Author)
	assert.Equal(t, "Strategist", events[2].Author)
	assert.Len(t, out.Events, 2)
}

func TestRunner_LaterTurnSeesCommittedState(t *testing.T) {
	store := session.NewInMemoryStore()

	first := New(pipeline(t), func(o *Options) { o.SessionStore = store })
	_, err := first.RunSync(context.Background(), "s1", "go", map[string]any{"product": "EcoBottle"})
	require.NoError(t, err)

	rec := &testutil.RecordingModel{Inner: testutil.EchoModel("c")}
	follow := New(leaf("ContentCreator", "Write from {{messaging_strategy}}", "content", rec), func(o *Options) { o.SessionStore = store })

	out, err := follow.RunSync(context.Background(), "s1", "now write", nil)
	require.NoError(t, err)
	assert.Equal(t, "c: Write from s: Strategy from r: Research EcoBottle", out.Result.Text)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)

	contents := reqs[0].Contents
	require.NotEmpty(t, contents)
	assert.Equal(t, "go", contents[0].Text())
	assert.Equal(t, "now write", contents[len(contents)-1].Text())
}

func TestRunner_FailureCommitsNothing(t *testing.T) {
	failing := model.Func{Fn: func(context.Context, model.Request) (model.Response, error) {
		return model.Response{}, assert.AnError
	}}

	root, err := agent.NewSequentialAgent("Pipeline",
		leaf("Researcher", "Research", "research_results", testutil.EchoModel("r")),
		leaf("Strategist", "x", "messaging_strategy", failing),
	)
	require.NoError(t, err)

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) { o.SessionStore = store })

	out, err := r.RunSync(context.Background(), "s1", "go", map[string]any{"product": "EcoBottle"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, core.ErrModelInvocation)

	var stage *core.StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, "Strategist", stage.Stage())

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.StateSnapshot())

	var sawError bool

	for _, ev := range sess.GetEvents() {
		if ev.IsError() {
			sawError = true
			assert.Equal(t, core.CodeModelInvocation, *ev.ErrorCode)
		}
	}

	assert.True(t, sawError)
}

func TestRunner_StreamsEvents(t *testing.T) {
	r := New(pipeline(t))

	inv, err := r.Run(context.Background(), "s1", core.NewTextContent(core.RoleUser, "go"), map[string]any{"product": "P"})
	require.NoError(t, err)

	var authors []string
	for ev := range inv.Events() {
		authors = append(authors, ev.Author)
		assert.Equal(t, inv.RunID, ev.InvocationID)
	}

	assert.Equal(t, []string{"Researcher", "Strategist"}, authors)

	out, err := inv.Wait()
	require.NoError(t, err)
	assert.Equal(t, inv.RunID, out.RunID)
}

func TestRunner_Cancel(t *testing.T) {
	started := make(chan struct{})

	blocking := model.Func{Fn: func(ctx context.Context, _ model.Request) (model.Response, error) {
		close(started)
		<-ctx.Done()

		return model.Response{}, ctx.Err()
	}}

	store := session.NewInMemoryStore()
	r := New(leaf("Slow", "x", "slow", blocking), func(o *Options) { o.SessionStore = store })

	inv, err := r.Run(context.Background(), "s1", core.NewTextContent(core.RoleUser, "go"), map[string]any{"seed": 1})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("model never started")
	}

	require.NoError(t, r.Cancel(inv.RunID))

	_, err = inv.Wait()
	require.ErrorIs(t, err, context.Canceled)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.StateSnapshot())

	assert.Error(t, r.Cancel(inv.RunID))
}

func TestRunner_CancelUnknownRun(t *testing.T) {
	r := New(pipeline(t))
	assert.EqualError(t, r.Cancel("nope"), "run nope not found")
}

func TestRunner_ModelCallLimit(t *testing.T) {
	r := New(pipeline(t), func(o *Options) { o.MaxModelCalls = 1 })

	_, err := r.RunSync(context.Background(), "s1", "go", map[string]any{"product": "P"})
	require.ErrorIs(t, err, core.ErrModelCallLimit)
}

func TestRunner_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	r := New(leaf("Traced", "x", "", testutil.EchoModel("t")), func(o *Options) { o.Tracer = tp.Tracer("test") })

	_, err := r.RunSync(context.Background(), "s1", "go", nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	byName := map[string]trace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}

	require.Contains(t, byName, "runner.run")
	require.Contains(t, byName, "agent.run")
	assert.Equal(t, byName["runner.run"].SpanContext().SpanID(), byName["agent.run"].Parent().SpanID())
}

package core

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/campaignmesh/logging"
)

// AgentInfo identifies the agent currently executing within a RunContext.
// Type is one of "model", "sequential" or "parallel".
type AgentInfo struct{ Name, Type string }

// RunContext carries everything a composition node needs for one run:
//   - the cancellation Context
//   - identifiers (SessionID, RunID, Agent, Branch)
//   - the user Content that started the run
//   - the shared run State and the model call Limiter
//   - the event sink (Emit) and the session snapshot taken at start
//
// Copies made with WithAgent/WithBranch/WithContext share State, Limiter and
// Emit. Fork additionally gives the copy its own forked State.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	Emit             chan<- Event
	SessionStore     SessionStore
	Session          *Session
	State            *State
	Limiter          *ModelLimiter
	Tracer           trace.Tracer
	Branch           string

	*loggerAdapter
}

// NewRunContext constructs a RunContext. A nil state starts empty; a nil
// emit channel discards events.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	sess *Session,
	sessionStore SessionStore,
	state *State,
	logger logging.Logger,
) *RunContext {
	if state == nil {
		state = NewState(nil)
	}

	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		UserContent:   userContent,
		Emit:          emit,
		Session:       sess,
		SessionStore:  sessionStore,
		State:         state,
		Limiter:       NewModelLimiter(maxModelCalls),
		Tracer:        noop.NewTracerProvider().Tracer(""),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState reads a key from the run state.
func (rc *RunContext) GetState(k string) (any, bool) { return rc.State.Get(k) }

// SetState writes a key to the run state. Writes are refused once the run
// has been cancelled.
func (rc *RunContext) SetState(k string, v any) error {
	if err := rc.Context.Err(); err != nil {
		return fmt.Errorf("state write %q after cancellation: %w", k, err)
	}

	rc.State.Set(k, v)

	return nil
}

// GetSessionHistory returns the conversation history of earlier turns.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetConversationHistory()
}

// GetAgentName returns the name of the executing agent.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// GetAgentType returns the kind of the executing agent.
func (rc *RunContext) GetAgentType() string { return rc.Agent.Type }

// Clone returns a shallow copy sharing State, Limiter and Emit.
func (rc *RunContext) Clone() *RunContext {
	c := *rc
	return &c
}

// WithAgent returns a copy bound to another agent.
func (rc *RunContext) WithAgent(info AgentInfo) *RunContext {
	c := rc.Clone()
	c.Agent = info

	return c
}

// WithBranch returns a copy with the Branch label set.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b

	return c
}

// WithContext returns a copy using ctx for cancellation and tracing.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := rc.Clone()
	c.Context = ctx

	return c
}

// Fork returns a copy on branch b with an independent State seeded from the
// current snapshot. Its writes are collected with State.Delta.
func (rc *RunContext) Fork(b string) *RunContext {
	c := rc.WithBranch(b)
	c.State = rc.State.Fork()

	return c
}

// StartSpan opens a tracing span and returns a copy carrying its context.
func (rc *RunContext) StartSpan(name string, attrs ...attribute.KeyValue) (*RunContext, trace.Span) {
	tracer := rc.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	attrs = append(attrs, attribute.String("campaignmesh.run_id", rc.RunID))
	if rc.Branch != "" {
		attrs = append(attrs, attribute.String("campaignmesh.branch", rc.Branch))
	}

	ctx, span := tracer.Start(rc.Context, name, trace.WithAttributes(attrs...))

	return rc.WithContext(ctx), span
}

// EmitEvent stamps the event with run and branch information and sends it
// to the event sink. It is a no-op when no sink is configured.
func (rc *RunContext) EmitEvent(ev Event) error {
	if rc.Emit == nil {
		return nil
	}

	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}

	if ev.Branch == nil && rc.Branch != "" {
		b := rc.Branch
		ev.Branch = &b
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	return nil
}

// CommitState persists every key written during the run to the session store.
func (rc *RunContext) CommitState() error {
	delta := rc.State.Delta()
	if len(delta) == 0 {
		return nil
	}

	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	return rc.SessionStore.ApplyDelta(rc.SessionID, delta)
}

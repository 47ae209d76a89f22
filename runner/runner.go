package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/logging"
	"github.com/hupe1980/campaignmesh/session"
)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run. Zero means
	// unlimited.
	MaxModelCalls int
	// SessionStore keeps conversation history and committed state.
	SessionStore core.SessionStore
	// Logger receives runner and agent logs.
	Logger logging.Logger
	// Tracer opens run and agent spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Outcome is the result of a successful run.
type Outcome struct {
	RunID  string         `json:"run_id"`
	Result agent.Result   `json:"result"`
	State  map[string]any `json:"state"`
	Events []core.Event   `json:"events"`
}

// Runner executes a root agent. Public methods are safe for concurrent use.
type Runner struct {
	root agent.Node

	eventBufferSize int
	maxModelCalls   int
	sessionStore    core.SessionStore
	logger          logging.Logger
	tracer          trace.Tracer

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(root agent.Node, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		root:            root,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		logger:          opts.Logger,
		tracer:          opts.Tracer,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Root returns the agent tree the runner executes.
func (r *Runner) Root() agent.Node { return r.root }

// SessionStore returns the store backing the runner.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Invocation is a run in progress.
type Invocation struct {
	RunID string

	events  chan core.Event
	done    chan struct{}
	outcome *Outcome
	err     error
}

// Events streams the run's events, partial fragments included. The channel
// is closed when the run ends.
func (inv *Invocation) Events() <-chan core.Event { return inv.events }

// Wait blocks until the run ends, draining events nobody consumed, and
// returns its outcome or error.
func (inv *Invocation) Wait() (*Outcome, error) {
	for range inv.events {
	}

	<-inv.done

	return inv.outcome, inv.err
}

// Run starts an asynchronous run of the root agent in sessionID. The run
// state starts from the session's committed state overlaid with
// initialState; initialState keys are committed with the run's outputs.
// Either Events must be consumed or Wait called for the run to progress.
func (r *Runner) Run(ctx context.Context, sessionID string, content core.Content, initialState map[string]any) (*Invocation, error) {
	// The history snapshot is taken before this turn's user event is
	// recorded; the flow appends the user content itself.
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	if err := r.sessionStore.AppendEvent(sessionID, core.NewUserContentEvent(runID, &content)); err != nil {
		return nil, fmt.Errorf("failed to append user event: %w", err)
	}

	state := core.NewState(sess.StateSnapshot())
	for k, v := range initialState {
		state.Set(k, v)
	}

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	agentEmit := make(chan core.Event, r.eventBufferSize)

	rc := core.NewRunContext(ctx, sessionID, runID, content, r.maxModelCalls, agentEmit, sess, r.sessionStore, state, r.logger)
	if r.tracer != nil {
		rc.Tracer = r.tracer
	}

	inv := &Invocation{
		RunID:  runID,
		events: make(chan core.Event, r.eventBufferSize),
		done:   make(chan struct{}),
	}

	type runResult struct {
		res agent.Result
		err error
	}

	finished := make(chan runResult, 1)

	go func() {
		defer close(agentEmit)

		res, err := r.runRoot(rc)
		finished <- runResult{res: res, err: err}
	}()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
			close(inv.done)
		}()

		var recorded []core.Event

		for ev := range agentEmit {
			if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
				r.logger.Warn("runner.session.append_failed", "run_id", runID, "error", err)
			}

			if !ev.IsPartial() {
				recorded = append(recorded, ev)
			}

			inv.events <- ev
		}

		close(inv.events)

		out := <-finished
		inv.outcome, inv.err = r.finish(rc, out.res, out.err, recorded)
	}()

	return inv, nil
}

// RunSync runs the root agent with a user prompt and waits for the outcome.
func (r *Runner) RunSync(ctx context.Context, sessionID, prompt string, initialState map[string]any) (*Outcome, error) {
	inv, err := r.Run(ctx, sessionID, core.NewTextContent(core.RoleUser, prompt), initialState)
	if err != nil {
		return nil, err
	}

	return inv.Wait()
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

func (r *Runner) runRoot(runCtx *core.RunContext) (agent.Result, error) {
	rc, span := runCtx.StartSpan("runner.run",
		attribute.String("campaignmesh.session_id", runCtx.SessionID),
		attribute.String("campaignmesh.root", r.root.Name()),
	)
	defer span.End()

	start := time.Now()

	rc.LogInfo("runner.run.start", "run_id", rc.RunID, "session_id", rc.SessionID, "root", r.root.Name())

	res, err := r.root.Run(rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rc.LogError("runner.run.failed", "run_id", rc.RunID, "code", core.ErrorCode(err), "error", err)

		return agent.Result{}, err
	}

	rc.LogInfo("runner.run.done", "run_id", rc.RunID, "duration_ms", time.Since(start).Milliseconds())

	return res, nil
}

// finish commits the run's writes when the whole tree succeeded and the run
// was not cancelled.
func (r *Runner) finish(rc *core.RunContext, res agent.Result, runErr error, events []core.Event) (*Outcome, error) {
	if runErr == nil {
		runErr = rc.Err()
	}

	if runErr != nil {
		return nil, fmt.Errorf("run %s: %w", rc.RunID, runErr)
	}

	if err := rc.CommitState(); err != nil {
		return nil, fmt.Errorf("run %s: commit state: %w", rc.RunID, err)
	}

	return &Outcome{
		RunID:  rc.RunID,
		Result: res,
		State:  rc.State.Snapshot(),
		Events: events,
	}, nil
}

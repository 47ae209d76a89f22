package agent

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/campaignmesh/core"
)

// ParallelAgentOptions configures a ParallelAgent.
type ParallelAgentOptions struct {
	Description string
	// Timeout bounds the whole group. Zero means no bound.
	Timeout time.Duration
	// MaxConcurrency caps concurrently running children. Zero means all.
	MaxConcurrency int
}

// ParallelAgent runs its children concurrently. Every child reads its own
// fork of the state as it was when the group started, so siblings never
// see each other's writes. The group waits for all children; when any of
// them fails the group reports every failure and merges nothing, otherwise
// all outputs are merged into the parent state in one step.
type ParallelAgent struct {
	BaseAgent
	children       []Node
	timeout        time.Duration
	maxConcurrency int
}

// NewParallelAgent creates a parallel composer. Child names must be
// distinct and no two children may publish the same output key; the latter
// fails with a *core.DuplicateOutputKeyError.
func NewParallelAgent(name string, children []Node, optFns ...func(o *ParallelAgentOptions)) (*ParallelAgent, error) {
	opts := ParallelAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := checkChildNames(name, children); err != nil {
		return nil, err
	}

	if err := checkOutputKeys(name, children); err != nil {
		return nil, err
	}

	base := NewBaseAgent(name)
	if opts.Description != "" {
		base.description = opts.Description
	}

	return &ParallelAgent{
		BaseAgent:      base,
		children:       append([]Node(nil), children...),
		timeout:        opts.Timeout,
		maxConcurrency: opts.MaxConcurrency,
	}, nil
}

func (p *ParallelAgent) isNode() {}

// Kind implements Node.
func (p *ParallelAgent) Kind() Kind { return KindParallel }

// Children implements Node.
func (p *ParallelAgent) Children() []Node { return p.children }

// OutputKeys implements Node.
func (p *ParallelAgent) OutputKeys() []string { return collectOutputKeys(p.children) }

// Run implements Node. Failures come back as a *core.ParallelError listing
// every failed branch in declaration order.
func (p *ParallelAgent) Run(runCtx *core.RunContext) (res Result, err error) {
	rc, span := startRun(runCtx, p)
	defer func() { endSpan(span, err) }()

	if err := rc.Err(); err != nil {
		return Result{}, err
	}

	ctx, cancel := rc.Context, context.CancelFunc(func() {})
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(rc.Context, p.timeout)
	}
	defer cancel()

	group := rc.WithContext(ctx)

	// Fork every branch before any child starts so all of them read the
	// same pre-group snapshot.
	branches := make([]*core.RunContext, len(p.children))
	for i, child := range p.children {
		branches[i] = group.Fork(buildBranchPath(rc.Branch, p.Name()+"."+child.Name()))
	}

	results := make([]Result, len(p.children))
	errs := make([]error, len(p.children))

	wp := pool.New()
	if p.maxConcurrency > 0 {
		wp = wp.WithMaxGoroutines(p.maxConcurrency)
	}

	rc.LogDebug("agent.parallel.start", "agent", p.Name(), "children", len(p.children), "max_concurrency", p.maxConcurrency)

	start := time.Now()

	for i, child := range p.children {
		wp.Go(func() {
			if err := branches[i].Err(); err != nil {
				errs[i] = err
				return
			}

			results[i], errs[i] = child.Run(branches[i])
		})
	}

	wp.Wait()

	// Cancellation of the parent wins over branch failures it caused.
	if err := rc.Err(); err != nil {
		rc.LogWarn("agent.parallel.cancelled", "agent", p.Name())
		return Result{}, err
	}

	var failures []core.BranchFailure

	for i, e := range errs {
		if e != nil {
			failures = append(failures, core.BranchFailure{Branch: p.children[i].Name(), Err: e})
		}
	}

	if len(failures) > 0 {
		rc.LogWarn("agent.parallel.failed", "agent", p.Name(), "failed", len(failures), "children", len(p.children))
		return Result{}, &core.ParallelError{Group: p.Name(), Failures: failures}
	}

	delta := make(map[string]any)
	for _, b := range branches {
		maps.Copy(delta, b.State.Delta())
	}

	rc.State.Merge(delta)

	rc.LogDebug(
		"agent.parallel.merged",
		"agent", p.Name(),
		"keys", len(delta),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	texts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
	}

	return Result{Author: p.Name(), Text: strings.Join(texts, "\n\n"), Branches: results}, nil
}

func checkOutputKeys(group string, children []Node) error {
	owner := make(map[string]string)

	for _, c := range children {
		for _, key := range c.OutputKeys() {
			if prev, dup := owner[key]; dup {
				return &core.DuplicateOutputKeyError{Group: group, Key: key, Agents: []string{prev, c.Name()}}
			}

			owner[key] = c.Name()
		}
	}

	return nil
}

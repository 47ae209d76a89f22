package agent

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/campaignmesh/core"
)

// Kind names a node variant.
type Kind string

// Node kinds.
const (
	KindModel      Kind = "model"
	KindSequential Kind = "sequential"
	KindParallel   Kind = "parallel"
)

// Node is a composition tree element. Implementations are limited to
// ModelAgent, SequentialAgent and ParallelAgent.
type Node interface {
	// Name returns the agent name, unique within a tree.
	Name() string

	// Description returns a human readable summary.
	Description() string

	// Kind returns the node variant.
	Kind() Kind

	// Run executes the node against runCtx.
	Run(runCtx *core.RunContext) (Result, error)

	// OutputKeys returns every state key the node (or a descendant) publishes.
	OutputKeys() []string

	// Children returns the direct child nodes.
	Children() []Node

	isNode()
}

// Result is what a node returns to its caller.
type Result struct {
	Author    string   `json:"author"`
	Text      string   `json:"text"`
	OutputKey string   `json:"output_key,omitempty"`
	Branches  []Result `json:"branches,omitempty"`
}

// BaseAgent carries the identity shared by every node kind.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the agent description.
func (b *BaseAgent) Description() string { return b.description }

// startRun binds runCtx to the node and opens its span.
func startRun(runCtx *core.RunContext, n Node) (*core.RunContext, trace.Span) {
	rc := runCtx.WithAgent(core.AgentInfo{Name: n.Name(), Type: string(n.Kind())})

	return rc.StartSpan("agent.run",
		attribute.String("campaignmesh.agent", n.Name()),
		attribute.String("campaignmesh.agent.kind", string(n.Kind())),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// Walk visits n and its descendants depth first, parents before children.
// Returning false from fn skips the children of the current node.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}

	for _, c := range n.Children() {
		walk(c, depth+1, fn)
	}
}

// Find returns the node called name, or nil.
func Find(root Node, name string) Node {
	var found Node

	Walk(root, func(n Node, _ int) bool {
		if found != nil {
			return false
		}

		if n.Name() == name {
			found = n
			return false
		}

		return true
	})

	return found
}

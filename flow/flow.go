// Package flow drives a single agent turn: it assembles the model request
// through request processors, runs the bounded model/tool loop and
// publishes the final answer.
package flow

import (
	"time"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/tool"
)

// Flow executes one agent turn and returns its final text.
type Flow interface {
	Execute(runCtx *core.RunContext) (string, error)
}

// FlowAgent is the view of an agent a flow needs.
type FlowAgent interface {
	// Name returns the agent name used as event author.
	Name() string

	// Model returns the model backing the agent.
	Model() model.Model

	// ResolveInstructions returns the unrendered instruction template.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// Tools returns the tools the agent may call, in declaration order.
	Tools() []tool.Tool

	// OutputKey returns the run state key for the final answer, or "".
	OutputKey() string

	// MaxToolIterations bounds the number of tool rounds per turn.
	MaxToolIterations() int

	// ToolTimeout bounds a single tool call. Zero disables the bound.
	ToolTimeout() time.Duration

	// IsStreamingEnabled reports whether partial model output is requested.
	IsStreamingEnabled() bool

	// MaxHistoryMessages caps the earlier-turn history sent to the model.
	MaxHistoryMessages() int
}

// RequestProcessor contributes to the model request before the loop starts.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string

	// ProcessRequest modifies req in place.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

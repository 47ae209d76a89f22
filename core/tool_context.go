package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/campaignmesh/logging"
)

// ToolContext is the surface handed to tool implementations. Tools may read
// the run state visible to their agent but never write it; agents publish
// results through their output key only.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its RunContext and call ID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context of the invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID of the run.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run ID.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the run logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the ID of the call being served.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the calling agent.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// GetState reads a key from the run state visible to the calling agent.
func (tc *ToolContext) GetState(k string) (any, bool) {
	return tc.runCtx.GetState(k)
}

// Validate performs a structural sanity check.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

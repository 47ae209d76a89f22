package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/tool"
)

// FunctionExecutor runs one batch of tool calls. Implementations must:
//   - return exactly one FunctionResponse event per call, in call order
//   - never panic (recover and report a *tool.ToolError instead)
//   - respect runCtx.Context cancellation
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, tools map[string]tool.Tool, calls []core.FunctionCall) []core.Event
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <1 => one goroutine per call
	LogStartEvents bool // log a start line per call
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs the default executor.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	calls []core.FunctionCall,
) []core.Event {
	events := make([]core.Event, len(calls))
	if len(calls) == 0 {
		return events
	}

	if len(calls) == 1 {
		events[0] = e.executeOne(runCtx, agent, tools[calls[0].Name], calls[0])
		return events
	}

	p := pool.New()
	if e.cfg.MaxParallel > 0 {
		p = p.WithMaxGoroutines(e.cfg.MaxParallel)
	}

	start := time.Now()

	for i, fc := range calls {
		p.Go(func() {
			events[i] = e.executeOne(runCtx, agent, tools[fc.Name], fc)
		})
	}

	p.Wait()

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.Name(),
		"count", len(calls),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return events
}

func (e *parallelFunctionExecutor) executeOne(runCtx *core.RunContext, agent FlowAgent, impl tool.Tool, fc core.FunctionCall) core.Event {
	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.Name(), "function", fc.Name, "function_call_id", fc.ID)
	}

	callCtx := runCtx
	if timeout := agent.ToolTimeout(); timeout > 0 {
		ctx, cancel := context.WithTimeout(runCtx.Context, timeout)
		defer cancel()

		callCtx = runCtx.WithContext(ctx)
	}

	start := time.Now()
	result, err := callTool(callCtx, runCtx.Context, impl, fc)

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.Name(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	var tErr *tool.ToolError
	if errors.As(err, &tErr) && tErr.Code == tool.CodePanic {
		runCtx.LogError("agent.function.panic", "agent", agent.Name(), "function", fc.Name, "details", tErr.Details)
	}

	ev := core.NewFunctionResponseEvent(agent.Name(), fc.ID, fc.Name, result, err)
	ev.InvocationID = runCtx.RunID

	return ev
}

// callTool invokes impl on its own goroutine so a tool ignoring its context
// cannot hold the turn past the call deadline. Failures other than parent
// cancellation come back as *tool.ToolError.
func callTool(callCtx *core.RunContext, parent context.Context, impl tool.Tool, fc core.FunctionCall) (any, error) {
	if impl == nil {
		return nil, tool.NewToolError(fc.Name, "tool not found", tool.CodeExecution)
	}

	args, err := model.DecodeArguments(fc.Arguments)
	if err != nil {
		return nil, tool.NewToolError(fc.Name, err.Error(), tool.CodeValidation)
	}

	type outcome struct {
		result any
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				tErr := tool.NewToolError(fc.Name, fmt.Sprintf("panic: %v", r), tool.CodePanic)
				tErr.Details = string(debug.Stack())
				done <- outcome{err: tErr}
			}
		}()

		res, err := impl.Call(core.NewToolContext(callCtx, fc.ID), args)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.result, nil
		}

		if parent.Err() != nil {
			return nil, parent.Err()
		}

		var tErr *tool.ToolError
		if errors.As(o.err, &tErr) {
			return nil, tErr
		}

		if errors.Is(o.err, context.DeadlineExceeded) {
			return nil, tool.NewToolError(fc.Name, "call timed out", tool.CodeTimeout)
		}

		return nil, tool.NewToolError(fc.Name, o.err.Error(), tool.CodeExecution)
	case <-callCtx.Done():
		if parent.Err() != nil {
			return nil, parent.Err()
		}

		return nil, tool.NewToolError(fc.Name, "call timed out", tool.CodeTimeout)
	}
}

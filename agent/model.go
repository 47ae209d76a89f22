package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/flow"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/tool"
)

// Defaults applied by NewModelAgent.
const (
	DefaultMaxToolIterations  = 10
	DefaultToolTimeout        = 15 * time.Second
	DefaultMaxHistoryMessages = 20
)

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Description        string
	Instruction        Instruction
	OutputKey          string
	Tools              []tool.Tool
	MaxToolIterations  int
	ToolTimeout        time.Duration
	EnableStreaming    bool
	MaxHistoryMessages int
}

// ModelAgent is the leaf node: it renders its instruction against the run
// state, runs the model/tool loop through a flow and, when OutputKey is set,
// writes the final answer into the run state.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              []tool.Tool
	outputKey          string
	maxToolIterations  int
	toolTimeout        time.Duration
	enableStreaming    bool
	maxHistoryMessages int
}

// NewModelAgent creates a leaf agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxToolIterations:  DefaultMaxToolIterations,
		ToolTimeout:        DefaultToolTimeout,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	base := NewBaseAgent(name)
	if opts.Description != "" {
		base.description = opts.Description
	}

	return &ModelAgent{
		BaseAgent:          base,
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              append([]tool.Tool(nil), opts.Tools...),
		outputKey:          opts.OutputKey,
		maxToolIterations:  opts.MaxToolIterations,
		toolTimeout:        opts.ToolTimeout,
		enableStreaming:    opts.EnableStreaming,
		maxHistoryMessages: opts.MaxHistoryMessages,
	}
}

func (a *ModelAgent) isNode() {}

// Kind implements Node.
func (a *ModelAgent) Kind() Kind { return KindModel }

// Children implements Node; a leaf has none.
func (a *ModelAgent) Children() []Node { return nil }

// OutputKeys implements Node.
func (a *ModelAgent) OutputKeys() []string {
	if a.outputKey == "" {
		return nil
	}

	return []string{a.outputKey}
}

// Instruction returns the agent instruction.
func (a *ModelAgent) Instruction() Instruction { return a.instruction }

// ToolNames returns the bound tool names in declaration order.
func (a *ModelAgent) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for _, t := range a.tools {
		names = append(names, t.Name())
	}

	return names
}

// Model implements flow.FlowAgent.
func (a *ModelAgent) Model() model.Model { return a.llm }

// ResolveInstructions implements flow.FlowAgent.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Tools implements flow.FlowAgent.
func (a *ModelAgent) Tools() []tool.Tool { return a.tools }

// OutputKey implements flow.FlowAgent.
func (a *ModelAgent) OutputKey() string { return a.outputKey }

// MaxToolIterations implements flow.FlowAgent.
func (a *ModelAgent) MaxToolIterations() int { return a.maxToolIterations }

// ToolTimeout implements flow.FlowAgent.
func (a *ModelAgent) ToolTimeout() time.Duration { return a.toolTimeout }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// MaxHistoryMessages implements flow.FlowAgent.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// Run implements Node. A failed run emits an error event (unless the run
// was cancelled) and writes nothing to the run state.
func (a *ModelAgent) Run(runCtx *core.RunContext) (res Result, err error) {
	rc, span := startRun(runCtx, a)
	defer func() { endSpan(span, err) }()

	rc.LogDebug("agent.run.start", "agent", a.Name(), "run", rc.RunID, "branch", rc.Branch)

	start := time.Now()

	text, err := flow.NewSingleAgentFlow(a).Execute(rc)
	if err != nil {
		rc.LogError("agent.run.error", "agent", a.Name(), "code", core.ErrorCode(err), "error", err.Error())

		if rc.Err() == nil {
			_ = rc.EmitEvent(core.NewErrorEvent(a.Name(), core.ErrorCode(err), err))
		}

		return Result{}, err
	}

	rc.LogInfo(
		"agent.run.complete",
		"agent", a.Name(),
		"output_key", a.outputKey,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{Author: a.Name(), Text: text, OutputKey: a.outputKey}, nil
}

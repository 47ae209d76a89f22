package flow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
	"github.com/hupe1980/campaignmesh/model"
)

// InstructionsProcessor renders the agent instruction against the run state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions. Unresolvable placeholders fail with
// a *core.MissingContextKeyError naming the agent.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	tmpl, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instruction: %w", err)
	}

	rendered, err := util.RenderTemplate(tmpl, runCtx.State.Snapshot())
	if err != nil {
		var mErr *core.MissingContextKeyError
		if errors.As(err, &mErr) {
			mErr.Agent = agent.Name()
		}

		return err
	}

	runCtx.LogDebug("agent.instruction.rendered", "agent", agent.Name(), "length", len(rendered))

	req.Instructions = rendered

	return nil
}

// ContentsProcessor adds earlier-turn history followed by the user content.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents. History is trimmed to the agent's limit
// without leaving a tool result whose call was cut off.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	events := runCtx.GetSessionHistory()
	if limit := agent.MaxHistoryMessages(); limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	contents := make([]core.Content, 0, len(events)+1)

	for _, ev := range events {
		if ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}

		if len(contents) == 0 && ev.Content.Role == core.RoleTool {
			continue
		}

		contents = append(contents, *ev.Content)
	}

	if len(runCtx.UserContent.Parts) > 0 {
		contents = append(contents, runCtx.UserContent)
	}

	req.Contents = contents

	return nil
}

// ToolsProcessor declares the agent's tools to the model.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets req.Tools and req.Stream.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	tools := agent.Tools()

	req.Tools = make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	req.Stream = agent.IsStreamingEnabled()

	return nil
}

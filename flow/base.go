package flow

import (
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/tool"
)

// BaseFlow is the single-agent request -> model -> tools loop with
// pluggable request processors.
//
// Within a turn the model sees earlier-turn history, the user content and
// this turn's own transcript. Nothing produced by other agents of the same
// run reaches it except through rendered state placeholders.
type BaseFlow struct {
	agent             FlowAgent
	requestProcessors []RequestProcessor
	executor          FunctionExecutor
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{}),
	}
}

// AddRequestProcessor appends a request processor; registration order is execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// SetFunctionExecutor replaces the tool call executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Execute runs the turn. When the model answers without tool calls the
// answer is written under the agent's output key (if any), announced with
// a final event and returned.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (string, error) {
	name := f.agent.Name()

	var req model.Request

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, &req, f.agent); err != nil {
			return "", err
		}
	}

	tools := make(map[string]tool.Tool)
	for _, t := range f.agent.Tools() {
		tools[t.Name()] = t
	}

	base := slices.Clip(req.Contents)

	var transcript []core.Content

	for rounds := 0; ; rounds++ {
		if err := runCtx.Err(); err != nil {
			return "", err
		}

		if err := runCtx.Limiter.Increment(); err != nil {
			return "", err
		}

		req.Contents = append(base, transcript...)

		resp, err := f.generate(runCtx, req)
		if err != nil {
			if ctxErr := runCtx.Err(); ctxErr != nil {
				return "", ctxErr
			}

			return "", &core.ModelInvocationError{Agent: name, Model: f.agent.Model().Info().Name, Err: err}
		}

		calls := functionCalls(resp.Content)
		if len(calls) == 0 {
			text := resp.Content.Text()
			return text, f.publish(runCtx, text)
		}

		if rounds >= f.agent.MaxToolIterations() {
			return "", &core.ToolLoopExceededError{Agent: name, Limit: f.agent.MaxToolIterations()}
		}

		for _, c := range calls {
			if _, ok := tools[c.Name]; !ok {
				return "", &core.UnknownToolError{Agent: name, Tool: c.Name}
			}
		}

		callContent := requestContent(resp.Content, calls)

		callEv := core.NewEvent(runCtx.RunID, name)
		callEv.Content = &callContent

		if err := runCtx.EmitEvent(callEv); err != nil {
			return "", err
		}

		results := f.executor.Execute(runCtx, f.agent, tools, calls)
		if err := runCtx.Err(); err != nil {
			return "", err
		}

		resultContent := core.Content{Role: core.RoleTool}

		for _, ev := range results {
			if err := runCtx.EmitEvent(ev); err != nil {
				return "", err
			}

			resultContent.Parts = append(resultContent.Parts, ev.Content.Parts...)
		}

		transcript = append(transcript, callContent, resultContent)
	}
}

// generate performs one model call. Partial chunks are forwarded as
// partial events; the last complete response wins. A stream without a
// complete response is assembled from its partial text.
func (f *BaseFlow) generate(runCtx *core.RunContext, req model.Request) (model.Response, error) {
	info := f.agent.Model().Info()

	spanCtx, span := runCtx.StartSpan("model.generate",
		attribute.String("campaignmesh.agent", f.agent.Name()),
		attribute.String("campaignmesh.model", info.Name),
		attribute.String("campaignmesh.provider", info.Provider),
	)
	defer span.End()

	respCh, errCh := f.agent.Model().Generate(spanCtx.Context, req)

	var (
		final   *model.Response
		partial strings.Builder
	)

	err := model.Consume(spanCtx.Context, respCh, errCh, func(r model.Response) error {
		if !r.Partial {
			final = &r
			return nil
		}

		partial.WriteString(r.Content.Text())

		ev := core.NewEvent(runCtx.RunID, f.agent.Name())
		content := r.Content
		ev.Content = &content
		isPartial := true
		ev.Partial = &isPartial

		return runCtx.EmitEvent(ev)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return model.Response{}, err
	}

	if final == nil {
		final = &model.Response{
			Content:      core.NewTextContent(core.RoleAssistant, partial.String()),
			FinishReason: "stop",
		}
	}

	runCtx.LogDebug(
		"agent.model.response",
		"agent", f.agent.Name(),
		"model", info.Name,
		"finish_reason", final.FinishReason,
		"function_calls", len(functionCalls(final.Content)),
	)

	if final.Usage != nil {
		span.SetAttributes(attribute.Int("campaignmesh.tokens.total", final.Usage.TotalTokens))
	}

	return *final, nil
}

func (f *BaseFlow) publish(runCtx *core.RunContext, text string) error {
	ev := core.NewEvent(runCtx.RunID, f.agent.Name())
	content := core.NewTextContent(core.RoleAssistant, text)
	ev.Content = &content
	complete := true
	ev.TurnComplete = &complete

	if key := f.agent.OutputKey(); key != "" {
		if err := runCtx.SetState(key, text); err != nil {
			return err
		}

		ev.Actions.StateDelta = map[string]any{key: text}
	}

	return runCtx.EmitEvent(ev)
}

// functionCalls returns the calls of c, assigning IDs where the provider
// left them empty.
func functionCalls(c core.Content) []core.FunctionCall {
	var calls []core.FunctionCall

	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			call := fc.FunctionCall
			if call.ID == "" {
				call.ID = core.NewID()
			}

			calls = append(calls, call)
		}
	}

	return calls
}

// requestContent rebuilds the assistant message with the normalised calls.
func requestContent(c core.Content, calls []core.FunctionCall) core.Content {
	out := core.Content{Role: core.RoleAssistant}

	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			out.Parts = append(out.Parts, tp)
		}
	}

	for _, call := range calls {
		out.Parts = append(out.Parts, core.FunctionCallPart{FunctionCall: call})
	}

	return out
}

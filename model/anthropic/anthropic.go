// Package anthropic adapts the Anthropic Messages API to model.Model.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
	"github.com/hupe1980/campaignmesh/model"
)

// Options configure the Anthropic adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Messages API.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a model with its own client. Without an APIKey the
// client falls back to ANTHROPIC_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		var err error
		if req.Stream {
			err = m.stream(ctx, params, out)
		} else {
			err = m.complete(ctx, params, out)
		}

		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic", SupportsTools: true}
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
		Messages:    toMessages(req.Contents),
	}

	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	for _, def := range req.Tools {
		schema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: def.Function.Parameters["properties"],
			Required:   util.RequiredFields(def.Function.Parameters),
		}

		tool := anthropic.ToolUnionParamOfTool(schema, def.Function.Name)
		if def.Function.Description != "" {
			tool.OfTool.Description = anthropic.String(def.Function.Description)
		}

		params.Tools = append(params.Tools, tool)
	}

	return params
}

// toMessages converts the transcript. Tool results travel in a user
// message as tool_result blocks.
func toMessages(contents []core.Content) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(contents))

	for _, c := range contents {
		var blocks []anthropic.ContentBlockParamUnion

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				}
			case core.FunctionCallPart:
				args := part.FunctionCall.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}

				blocks = append(blocks, anthropic.NewToolUseBlock(part.FunctionCall.ID, json.RawMessage(args), part.FunctionCall.Name))
			case core.FunctionResponsePart:
				fr := part.FunctionResponse
				blocks = append(blocks, anthropic.NewToolResultBlock(fr.ID, model.EncodeFunctionResponse(fr), fr.Error != ""))
			}
		}

		if len(blocks) == 0 {
			continue
		}

		if c.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	return messages
}

func (m *Model) complete(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}

	return send(ctx, out, toResponse(msg))
}

func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("anthropic stream: %w", err)
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}

		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			if err := send(ctx, out, model.Response{
				ID:      msg.ID,
				Partial: true,
				Content: core.NewTextContent(core.RoleAssistant, text.Text),
			}); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}

	return send(ctx, out, toResponse(&msg))
}

func toResponse(msg *anthropic.Message) model.Response {
	parts := make([]core.Part, 0, len(msg.Content))

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				parts = append(parts, core.TextPart{Text: text})
			}
		case "tool_use":
			use := block.AsToolUse()
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: string(use.Input),
			}})
		}
	}

	finish := "stop"

	switch msg.StopReason {
	case anthropic.StopReasonToolUse:
		finish = "tool_calls"
	case anthropic.StopReasonMaxTokens:
		finish = "length"
	}

	return model.Response{
		ID:           msg.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finish,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func send(ctx context.Context, out chan<- model.Response, resp model.Response) error {
	select {
	case out <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package openai adapts the OpenAI Chat Completions API to model.Model,
// including streaming and function calling.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/model"
)

// Options configure the OpenAI adapter.
type Options struct {
	Model               string
	APIKey              string
	BaseURL             string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the Chat Completions API.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a model with its own client. Without an APIKey the
// client falls back to OPENAI_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(reqOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
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
	return model.Info{Name: m.opts.Model, Provider: "openai", SupportsTools: true}
}

func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            toMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	if len(req.Tools) == 0 {
		return params
	}

	params.Tools = make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, def := range req.Tools {
		params.Tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		}
	}

	return params
}

// toMessages converts the ordered transcript. Tool results follow the
// assistant message that requested them, one tool message per result.
func toMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleTool:
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					messages = append(messages, openai.ToolMessage(model.EncodeFunctionResponse(fr.FunctionResponse), fr.FunctionResponse.ID))
				}
			}
		case core.RoleAssistant:
			calls := toolCalls(c)
			if len(calls) == 0 {
				messages = append(messages, openai.AssistantMessage(c.Text()))
				continue
			}

			msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text := c.Text(); text != "" {
				msg.Content.OfString = openai.String(text)
			}

			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(c.Text()))
		default:
			if text := c.Text(); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	return messages
}

func toolCalls(c core.Content) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam

	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}

		args := fc.FunctionCall.Arguments
		if args == "" {
			args = "{}"
		}

		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: args,
			},
		})
	}

	return calls
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return errors.New("openai: no choices returned")
	}

	choice := resp.Choices[0]

	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	return send(ctx, out, model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	})
}

// pendingCall accumulates streamed tool call fragments by index.
type pendingCall struct {
	index          int64
	id, name, args string
}

func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		text  strings.Builder
		calls = map[int64]*pendingCall{}
	)

	for stream.Next() {
		chunk := stream.Current()
		for _, ch := range chunk.Choices {
			if ch.Delta.Content != "" {
				text.WriteString(ch.Delta.Content)

				if err := send(ctx, out, model.Response{
					ID:      chunk.ID,
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, ch.Delta.Content),
				}); err != nil {
					return err
				}
			}

			for _, tc := range ch.Delta.ToolCalls {
				pc, ok := calls[tc.Index]
				if !ok {
					pc = &pendingCall{index: tc.Index}
					calls[tc.Index] = pc
				}

				if tc.ID != "" {
					pc.id = tc.ID
				}

				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}

				pc.args += tc.Function.Arguments
			}

			if ch.FinishReason == "" {
				continue
			}

			parts := make([]core.Part, 0, len(calls)+1)
			if text.Len() > 0 {
				parts = append(parts, core.TextPart{Text: text.String()})
			}

			for _, pc := range sortedCalls(calls) {
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        pc.id,
					Name:      pc.name,
					Arguments: pc.args,
				}})
			}

			if err := send(ctx, out, model.Response{
				ID:           chunk.ID,
				Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
				FinishReason: ch.FinishReason,
			}); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}

	return nil
}

func sortedCalls(calls map[int64]*pendingCall) []*pendingCall {
	out := make([]*pendingCall, 0, len(calls))
	for _, pc := range calls {
		out = append(out, pc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })

	return out
}

func send(ctx context.Context, out chan<- model.Response, resp model.Response) error {
	select {
	case out <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package gemini adapts Google's Gemini models to model.Model through the
// generative-ai-go SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
	"github.com/hupe1980/campaignmesh/model"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Options configure the Gemini adapter.
type Options struct {
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int32
}

// Model wraps a genai client.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a client for the Gemini API.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Close releases the underlying client.
func (m *Model) Close() error {
	return m.client.Close()
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}

// Generate implements model.Model. The transcript minus its last entry
// becomes chat history; the last entry is sent.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if err := m.generate(ctx, req, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (m *Model) generate(ctx context.Context, req model.Request, out chan<- model.Response) error {
	gm := m.client.GenerativeModel(m.opts.Model)
	gm.SetTemperature(m.opts.Temperature)
	gm.SetMaxOutputTokens(m.opts.MaxTokens)

	if req.Instructions != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
	}

	if len(req.Tools) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	contents := toContents(req.Contents)
	if len(contents) == 0 {
		return errors.New("gemini: empty request")
	}

	chat := gm.StartChat()
	chat.History = contents[:len(contents)-1]
	last := contents[len(contents)-1].Parts

	if !req.Stream {
		resp, err := chat.SendMessage(ctx, last...)
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}

		return send(ctx, out, toResponse(resp))
	}

	iter := chat.SendMessageStream(ctx, last...)

	var final *genai.GenerateContentResponse

	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}

		final = resp

		chunk := toResponse(resp)
		chunk.Partial = true

		if err := send(ctx, out, chunk); err != nil {
			return err
		}
	}

	// The iterator merges chunks into the chat history; its last model
	// turn is the complete response.
	if n := len(chat.History); n > 0 && chat.History[n-1].Role == "model" {
		full := toResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: chat.History[n-1]}}})
		if final != nil && len(final.Candidates) > 0 {
			full.FinishReason = finishReason(final.Candidates[0])
		}

		return send(ctx, out, full)
	}

	return nil
}

func toDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toSchema(t.Function.Parameters),
		})
	}

	return decls
}

// toSchema converts a JSON schema object into the SDK's schema type.
func toSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}

	s := &genai.Schema{}

	switch js["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}

	if d, ok := js["description"].(string); ok {
		s.Description = d
	}

	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if p, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(p)
			}
		}
	}

	if items, ok := js["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}

	s.Required = util.RequiredFields(js)

	return s
}

// toContents maps roles onto the two Gemini roles: "user" carries user
// text and function responses, "model" carries assistant turns.
func toContents(contents []core.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))

	for _, c := range contents {
		role := "user"
		if c.Role == core.RoleAssistant {
			role = "model"
		}

		var parts []genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, genai.Text(part.Text))
				}
			case core.FunctionCallPart:
				args, err := model.DecodeArguments(part.FunctionCall.Arguments)
				if err != nil {
					args = map[string]any{}
				}

				parts = append(parts, genai.FunctionCall{Name: part.FunctionCall.Name, Args: args})
			case core.FunctionResponsePart:
				parts = append(parts, genai.FunctionResponse{
					Name:     part.FunctionResponse.Name,
					Response: responseObject(part.FunctionResponse),
				})
			}
		}

		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: role, Parts: parts})
		}
	}

	return out
}

func responseObject(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}

	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(model.EncodeFunctionResponse(fr)), &obj); err == nil {
		return obj
	}

	return map[string]any{"result": fr.Response}
}

func toResponse(resp *genai.GenerateContentResponse) model.Response {
	r := model.Response{Content: core.Content{Role: core.RoleAssistant}}

	if resp == nil || len(resp.Candidates) == 0 {
		return r
	}

	cand := resp.Candidates[0]
	r.FinishReason = finishReason(cand)

	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			switch part := p.(type) {
			case genai.Text:
				r.Content.Parts = append(r.Content.Parts, core.TextPart{Text: string(part)})
			case genai.FunctionCall:
				r.Content.Parts = append(r.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        uuid.NewString(),
					Name:      part.Name,
					Arguments: model.EncodeArguments(part.Args),
				}})
				r.FinishReason = "tool_calls"
			}
		}
	}

	if u := resp.UsageMetadata; u != nil {
		r.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return r
}

func finishReason(c *genai.Candidate) string {
	switch c.FinishReason {
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonStop, genai.FinishReasonUnspecified:
		return "stop"
	default:
		return c.FinishReason.String()
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

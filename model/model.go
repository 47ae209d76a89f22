package model

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
)

// ToolDefinition exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one function. Parameters is a JSON schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalised model input built by flows.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a partial or final chunk produced by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // stop, length, tool_calls
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info describes a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the interface agents use to drive generation. Implementations
// close both channels when done and send at most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Consume drains a Generate channel pair, calling fn for every response.
// It returns the first error from fn, the model or ctx. The channels are
// always drained so the producer can exit.
func Consume(ctx context.Context, respCh <-chan Response, errCh <-chan error, fn func(Response) error) error {
	var firstErr error

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if firstErr == nil {
				firstErr = fn(r)
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Func adapts a function returning a single final response to Model.
type Func struct {
	Name string
	Fn   func(ctx context.Context, req Request) (Response, error)
}

// Generate implements Model.
func (f Func) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		resp, err := f.Fn(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		respCh <- resp
	}()

	return respCh, errCh
}

// Info implements Model.
func (f Func) Info() Info {
	name := f.Name
	if name == "" {
		name = "func"
	}

	return Info{Name: name, Provider: "func", SupportsTools: true}
}

// MockModel is an offline Model. It answers from canned responses keyed by
// the last user text, otherwise it echoes the first instruction line and the
// request. Tools whose names appear in the user text are called once before
// the final answer, with required arguments taken from that text.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for an input prompt. Not safe
// to call concurrently with Generate.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; streams characters first when req.Stream is set.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		if calls := m.pendingToolCalls(req); len(calls) > 0 {
			parts := make([]core.Part, 0, len(calls))
			for _, c := range calls {
				parts = append(parts, core.FunctionCallPart{FunctionCall: c})
			}

			respCh <- Response{
				ID:           core.NewID(),
				Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
				FinishReason: "tool_calls",
			}

			return
		}

		full := m.answer(req)

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, string(r))}:
				}
			}
		}

		respCh <- Response{
			ID:           core.NewID(),
			Content:      core.NewTextContent(core.RoleAssistant, full),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func (m *MockModel) answer(req Request) string {
	input := lastUserText(req.Contents)
	if canned, ok := m.responses[input]; ok {
		return canned
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s] ", m.info.Name)

	if line := firstLine(req.Instructions); line != "" {
		fmt.Fprintf(&sb, "%s\n", line)
	}

	fmt.Fprintf(&sb, "Mock response to: %s", input)

	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				if fr.FunctionResponse.Error != "" {
					fmt.Fprintf(&sb, "\n- %s failed: %s", fr.FunctionResponse.Name, fr.FunctionResponse.Error)
				} else {
					fmt.Fprintf(&sb, "\n- %s returned %v", fr.FunctionResponse.Name, fr.FunctionResponse.Response)
				}
			}
		}
	}

	return sb.String()
}

func (m *MockModel) pendingToolCalls(req Request) []core.FunctionCall {
	if len(req.Tools) == 0 {
		return nil
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleTool {
			return nil
		}
	}

	input := lastUserText(req.Contents)

	var calls []core.FunctionCall

	for _, t := range req.Tools {
		if strings.Contains(input, t.Function.Name) {
			calls = append(calls, core.FunctionCall{
				ID:        core.NewID(),
				Name:      t.Function.Name,
				Arguments: EncodeArguments(mockArguments(t.Function.Parameters, input)),
			})
		}
	}

	return calls
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// mockArguments fills the required fields of schema from input: strings get
// the whole text, numbers and integers the first number in it, booleans
// true. Fields without a usable value are left out.
func mockArguments(schema map[string]any, input string) map[string]any {
	args := make(map[string]any)
	properties, _ := schema["properties"].(map[string]any)
	number := numberPattern.FindString(input)

	for _, name := range util.RequiredFields(schema) {
		prop, _ := properties[name].(map[string]any)
		typ, _ := prop["type"].(string)

		switch typ {
		case "number":
			if f, err := strconv.ParseFloat(number, 64); err == nil {
				args[name] = f
			}
		case "integer":
			if f, err := strconv.ParseFloat(number, 64); err == nil {
				args[name] = int(f)
			}
		case "boolean":
			args[name] = true
		case "string", "":
			args[name] = input
		}
	}

	return args
}

func lastUserText(contents []core.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == core.RoleUser {
			return contents[i].Text()
		}
	}

	return ""
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}

	return ""
}

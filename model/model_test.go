package model

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/campaignmesh/core"
)

func collect(t *testing.T, m Model, req Request) ([]Response, error) {
	t.Helper()

	var out []Response

	respCh, errCh := m.Generate(context.Background(), req)
	err := Consume(context.Background(), respCh, errCh, func(r Response) error {
		out = append(out, r)
		return nil
	})

	return out, err
}

func userReq(text string) Request {
	return Request{
		Instructions: "You are a marketing expert.\nBe creative.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, text)},
	}
}

func TestMockModel_EchoAndCanned(t *testing.T) {
	m := NewMockModel("gemini-2.0-flash", "mock")
	m.AddResponse("hello", "canned")

	out, err := collect(t, m, userReq("hello"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "canned", out[0].Content.Text())

	out, err = collect(t, m, userReq("launch plan"))
	require.NoError(t, err)
	assert.Contains(t, out[0].Content.Text(), "You are a marketing expert.")
	assert.Contains(t, out[0].Content.Text(), "Mock response to: launch plan")
}

func TestMockModel_Streaming(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "abc")

	req := userReq("hi")
	req.Stream = true

	out, err := collect(t, m, req)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.True(t, out[0].Partial)
	assert.False(t, out[3].Partial)
}

func TestMockModel_CallsMentionedTools(t *testing.T) {
	m := NewMockModel("mock", "mock")
	req := userReq("please use get_current_date")
	req.Tools = []ToolDefinition{
		{Type: "function", Function: FunctionDefinition{Name: "get_current_date"}},
		{Type: "function", Function: FunctionDefinition{Name: "get_weather_data"}},
	}

	out, err := collect(t, m, req)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "tool_calls", out[0].FinishReason)

	calls := core.Event{Content: &out[0].Content}.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_current_date", calls[0].Name)

	req.Contents = append(req.Contents,
		core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: calls[0]}}},
		core.Content{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: calls[0].ID, Name: "get_current_date", Response: "2026-01-01"}}}},
	)

	out, err = collect(t, m, req)
	require.NoError(t, err)
	assert.Contains(t, out[0].Content.Text(), "get_current_date returned 2026-01-01")
}

func TestMockModel_FillsRequiredArguments(t *testing.T) {
	m := NewMockModel("mock", "mock")
	req := userReq("use calculate_marketing_budget and google_search for revenue 12000.5")
	req.Tools = []ToolDefinition{
		{Type: "function", Function: FunctionDefinition{
			Name: "calculate_marketing_budget",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"revenue":    map[string]any{"type": "number"},
					"percentage": map[string]any{"type": "number", "default": 10.0},
				},
				"required": []string{"revenue"},
			},
		}},
		{Type: "function", Function: FunctionDefinition{
			Name: "google_search",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []any{"query"},
			},
		}},
	}

	out, err := collect(t, m, req)
	require.NoError(t, err)
	require.Len(t, out, 1)

	calls := core.Event{Content: &out[0].Content}.GetFunctionCalls()
	require.Len(t, calls, 2)
	assert.JSONEq(t, `{"revenue":12000.5}`, calls[0].Arguments)
	assert.JSONEq(t, `{"query":"use calculate_marketing_budget and google_search for revenue 12000.5"}`, calls[1].Arguments)
}

func TestMockModel_OmitsUnavailableNumbers(t *testing.T) {
	m := NewMockModel("mock", "mock")
	req := userReq("use calculate_marketing_budget")
	req.Tools = []ToolDefinition{{Type: "function", Function: FunctionDefinition{
		Name: "calculate_marketing_budget",
		Parameters: map[string]any{
			"properties": map[string]any{"revenue": map[string]any{"type": "number"}},
			"required":   []string{"revenue"},
		},
	}}}

	out, err := collect(t, m, req)
	require.NoError(t, err)

	calls := core.Event{Content: &out[0].Content}.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "{}", calls[0].Arguments)
}

func TestRetryModel_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32

	inner := Func{Name: "flaky", Fn: func(_ context.Context, _ Request) (Response, error) {
		if calls.Add(1) < 3 {
			return Response{}, errors.New("503 unavailable")
		}
		return Response{Content: core.NewTextContent(core.RoleAssistant, "ok")}, nil
	}}

	m := NewRetryModel(inner, func(o *RetryOptions) {
		o.InitialBackoff = time.Millisecond
		o.MaxBackoff = 2 * time.Millisecond
	})

	out, err := collect(t, m, userReq("x"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].Content.Text())
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, "flaky", m.Info().Name)
}

func TestRetryModel_GivesUp(t *testing.T) {
	var calls atomic.Int32

	inner := Func{Fn: func(_ context.Context, _ Request) (Response, error) {
		calls.Add(1)
		return Response{}, errors.New("boom")
	}}

	m := NewRetryModel(inner, func(o *RetryOptions) {
		o.MaxAttempts = 2
		o.InitialBackoff = time.Millisecond
	})

	_, err := collect(t, m, userReq("x"))
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetryModel_NonRetryable(t *testing.T) {
	var calls atomic.Int32
	permanent := errors.New("invalid api key")

	inner := Func{Fn: func(_ context.Context, _ Request) (Response, error) {
		calls.Add(1)
		return Response{}, permanent
	}}

	m := NewRetryModel(inner, func(o *RetryOptions) {
		o.InitialBackoff = time.Millisecond
		o.ShouldRetry = func(err error) bool { return !errors.Is(err, permanent) }
	})

	_, err := collect(t, m, userReq("x"))
	assert.ErrorIs(t, err, permanent)
	assert.EqualValues(t, 1, calls.Load())
}

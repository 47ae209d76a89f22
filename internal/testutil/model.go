package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/model"
)

// EchoModel answers with "<prefix>: <rendered instructions>".
func EchoModel(prefix string) model.Model {
	return model.Func{Name: "echo", Fn: func(_ context.Context, req model.Request) (model.Response, error) {
		return model.Response{
			Content:      core.NewTextContent(core.RoleAssistant, fmt.Sprintf("%s: %s", prefix, req.Instructions)),
			FinishReason: "stop",
		}, nil
	}}
}

// RecordingModel wraps a model and records every request it receives.
type RecordingModel struct {
	Inner model.Model

	mu       sync.Mutex
	requests []model.Request
}

// Generate implements model.Model.
func (m *RecordingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	return m.Inner.Generate(ctx, req)
}

// Info implements model.Model.
func (m *RecordingModel) Info() model.Info { return m.Inner.Info() }

// Requests returns a copy of the recorded requests.
func (m *RecordingModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]model.Request(nil), m.requests...)
}

package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/campaignmesh/core"
)

func TestToSchema(t *testing.T) {
	s := toSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city":     map[string]any{"type": "string", "description": "City name"},
			"revenue":  map[string]any{"type": "number"},
			"channels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"revenue"},
	})

	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeString, s.Properties["city"].Type)
	assert.Equal(t, "City name", s.Properties["city"].Description)
	assert.Equal(t, genai.TypeNumber, s.Properties["revenue"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["channels"].Items.Type)
	assert.Equal(t, []string{"revenue"}, s.Required)

	assert.Nil(t, toSchema(nil))
}

func TestToContents(t *testing.T) {
	contents := toContents([]core.Content{
		core.NewTextContent(core.RoleUser, "budget for 12000"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: "c1", Name: "calculate_marketing_budget", Arguments: `{"revenue":12000}`,
		}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "c1", Name: "calculate_marketing_budget", Response: map[string]any{"recommended_budget": 1200.0},
		}}}},
		{Role: core.RoleAssistant},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, genai.FunctionCall{Name: "calculate_marketing_budget", Args: map[string]any{"revenue": 12000.0}}, contents[1].Parts[0])
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, genai.FunctionResponse{
		Name:     "calculate_marketing_budget",
		Response: map[string]any{"recommended_budget": 1200.0},
	}, contents[2].Parts[0])
}

func TestResponseObject(t *testing.T) {
	assert.Equal(t, map[string]any{"error": "boom"}, responseObject(core.FunctionResponse{Error: "boom"}))
	assert.Equal(t, map[string]any{"city": "Lahore"}, responseObject(core.FunctionResponse{Response: struct {
		City string `json:"city"`
	}{City: "Lahore"}}))
	assert.Equal(t, map[string]any{"result": "plain"}, responseObject(core.FunctionResponse{Response: "plain"}))
}

func TestToResponse(t *testing.T) {
	r := toResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.Text("checking"),
				genai.FunctionCall{Name: "get_current_date", Args: map[string]any{}},
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	})

	assert.Equal(t, "tool_calls", r.FinishReason)
	require.Len(t, r.Content.Parts, 2)
	fc := r.Content.Parts[1].(core.FunctionCallPart).FunctionCall
	assert.Equal(t, "get_current_date", fc.Name)
	assert.NotEmpty(t, fc.ID)
	assert.Equal(t, "{}", fc.Arguments)
	assert.Equal(t, 7, r.Usage.TotalTokens)

	empty := toResponse(nil)
	assert.Empty(t, empty.Content.Parts)
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/campaignmesh/core"
)

func TestRenderTemplate_Substitutes(t *testing.T) {
	out, err := RenderTemplate("Based on: {{research_data}}\nBudget: {{ budget }}", map[string]any{
		"research_data": "X",
		"budget":        1200.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Based on: X\nBudget: 1200", out)
}

func TestRenderTemplate_NoPlaceholders(t *testing.T) {
	out, err := RenderTemplate("You are a helpful marketing assistant.", nil)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful marketing assistant.", out)
}

func TestRenderTemplate_MissingKeys(t *testing.T) {
	_, err := RenderTemplate("{{a}} {{b}} {{a}}", map[string]any{})
	require.Error(t, err)

	var mk *core.MissingContextKeyError
	require.ErrorAs(t, err, &mk)
	assert.Equal(t, []string{"a", "b"}, mk.Keys)
	assert.ErrorIs(t, err, core.ErrMissingContextKey)
}

func TestRenderTemplate_NestedPath(t *testing.T) {
	state := map[string]any{
		"research": map[string]any{"summary": "eco bottles", "score": 7},
		"a.b":      "literal dotted key wins",
	}

	out, err := RenderTemplate("{{research.summary}}|{{research.score}}|{{a.b}}", state)
	require.NoError(t, err)
	assert.Equal(t, "eco bottles|7|literal dotted key wins", out)

	out, err = RenderTemplate("{{research}}", state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"eco bottles","score":7}`, out)

	_, err = RenderTemplate("{{research.missing}}", state)
	assert.ErrorIs(t, err, core.ErrMissingContextKey)
}

func TestRenderTemplate_IgnoresNonKeyBraces(t *testing.T) {
	out, err := RenderTemplate("{{ .Name }} and {{}}", nil)
	require.NoError(t, err)
	assert.Equal(t, "{{ .Name }} and {{}}", out)
}

func TestPlaceholders(t *testing.T) {
	keys := Placeholders("{{messaging_strategy}} then {{ research_results }} and {{messaging_strategy}}")
	assert.Equal(t, []string{"messaging_strategy", "research_results"}, keys)
	assert.Nil(t, Placeholders("none"))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "12000", Stringify(12000))
	assert.Equal(t, "0.5", Stringify(0.5))
	assert.Equal(t, `["a","b"]`, Stringify([]string{"a", "b"}))
}

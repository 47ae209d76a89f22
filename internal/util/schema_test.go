package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type budgetInput struct {
	Revenue    float64  `json:"revenue" description:"Annual revenue"`
	Percentage float64  `json:"percentage,omitempty" description:"Share of revenue" default:"10.0"`
	Channels   []string `json:"channels,omitempty"`
	Note       *string  `json:"note"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(budgetInput{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "revenue")
	assert.Contains(t, props, "percentage")
	assert.Contains(t, props, "note")

	pct := props["percentage"].(map[string]any)
	assert.Equal(t, "number", pct["type"])
	assert.Equal(t, 10.0, pct["default"])

	channels := props["channels"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, channels["items"])

	assert.Equal(t, []string{"revenue"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestCoerceParameters(t *testing.T) {
	schema := CreateSchema(budgetInput{})

	out, err := CoerceParameters(map[string]any{"revenue": "12000"}, schema)
	require.NoError(t, err)
	assert.Equal(t, 12000.0, out["revenue"])
	assert.Equal(t, 10.0, out["percentage"])

	out, err = CoerceParameters(map[string]any{"revenue": 5000, "percentage": 15}, schema)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, out["revenue"])
	assert.Equal(t, 15.0, out["percentage"])

	_, err = CoerceParameters(map[string]any{"revenue": "lots"}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "revenue", vErr.Field)

	_, err = CoerceParameters(map[string]any{}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "required field is missing", vErr.Message)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0}, schema))
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"x": 5.5}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"x": "5"}, schema))
}

package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
)

// NewTypedTool builds a FunctionTool whose input and output are fixed Go
// records. The schema is derived from In; coerced arguments are decoded
// into In before fn runs.
//
//	type weatherInput struct {
//		City string `json:"city,omitempty" default:"Islamabad"`
//	}
//
//	t := NewTypedTool("get_weather_data", "Current weather", func(tc *core.ToolContext, in weatherInput) (Weather, error) {...})
func NewTypedTool[In any, Out any](
	name, description string,
	fn func(toolCtx *core.ToolContext, in In) (Out, error),
) *FunctionTool {
	var zero In

	return NewFunctionTool(name, description, util.CreateSchema(zero), func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}

		var in In
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, &ToolError{Tool: name, Message: fmt.Sprintf("decode arguments: %v", err), Code: CodeValidation}
		}

		return fn(toolCtx, in)
	})
}

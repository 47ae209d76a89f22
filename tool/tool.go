// Package tool lets agents call Go functions with schema checked arguments.
// Tools are looked up by name in a Registry; failures are reported as
// *ToolError values that the agent hands back to the model instead of
// aborting the run.
package tool

import (
	"fmt"

	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
)

// Tool is a named capability an agent may invoke mid-execution.
//
// Implementations must be safe for concurrent use: parallel branches share
// the same tool instances.
type Tool interface {
	// Name returns the unique identifier (snake_case) used in function calls.
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
	CodeTimeout    = "TIMEOUT"
)

// ToolError is a recoverable tool failure. It matches core.ErrToolExecution
// with errors.Is.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Is reports whether target is core.ErrToolExecution.
func (e *ToolError) Is(target error) bool { return target == core.ErrToolExecution }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Typed errors below unwrap to one of these so callers can use
// errors.Is without knowing the concrete type.
var (
	ErrMissingContextKey  = errors.New("missing context key")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrToolLoopExceeded   = errors.New("tool loop exceeded")
	ErrToolExecution      = errors.New("tool execution error")
	ErrDuplicateOutputKey = errors.New("duplicate output key")
	ErrModelInvocation    = errors.New("model invocation error")
	ErrDuplicateAgentName = errors.New("duplicate agent name")
	ErrModelCallLimit     = errors.New("exceeded max model calls")
)

// MissingContextKeyError is raised when an instruction references keys that
// are not present in the run state.
type MissingContextKeyError struct {
	Agent string
	Keys  []string
}

func (e *MissingContextKeyError) Error() string {
	if e.Agent == "" {
		return fmt.Sprintf("missing context key: %s", strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("agent %s: missing context key: %s", e.Agent, strings.Join(e.Keys, ", "))
}

func (e *MissingContextKeyError) Unwrap() error { return ErrMissingContextKey }

// UnknownToolError is raised when a model requests a tool the agent does not bind.
type UnknownToolError struct {
	Agent string
	Tool  string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("agent %s: unknown tool %q", e.Agent, e.Tool)
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// ToolLoopExceededError is raised when a model keeps requesting tools past
// the configured number of rounds.
type ToolLoopExceededError struct {
	Agent string
	Limit int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("agent %s: tool loop exceeded %d iterations", e.Agent, e.Limit)
}

func (e *ToolLoopExceededError) Unwrap() error { return ErrToolLoopExceeded }

// DuplicateOutputKeyError is raised at build time when two branches of one
// parallel group publish under the same key.
type DuplicateOutputKeyError struct {
	Group  string
	Key    string
	Agents []string
}

func (e *DuplicateOutputKeyError) Error() string {
	return fmt.Sprintf("parallel group %s: output key %q declared by %s", e.Group, e.Key, strings.Join(e.Agents, " and "))
}

func (e *DuplicateOutputKeyError) Unwrap() error { return ErrDuplicateOutputKey }

// ModelInvocationError wraps a failure of the model endpoint.
type ModelInvocationError struct {
	Agent string
	Model string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("agent %s: model %s: %v", e.Agent, e.Model, e.Err)
}

func (e *ModelInvocationError) Unwrap() []error { return []error{ErrModelInvocation, e.Err} }

// StageError locates a failure inside a composition tree. Path lists agent
// names from the outermost composer down to the stage that failed.
type StageError struct {
	Path []string
	Err  error
}

// WrapStage prefixes err with the given stage name. Nested StageErrors are
// flattened into a single path.
func WrapStage(name string, err error) error {
	if err == nil {
		return nil
	}

	if se, ok := err.(*StageError); ok {
		return &StageError{Path: append([]string{name}, se.Path...), Err: se.Err}
	}

	return &StageError{Path: []string{name}, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", strings.Join(e.Path, "/"), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage returns the slash separated stage path.
func (e *StageError) Stage() string { return strings.Join(e.Path, "/") }

// BranchFailure is a single failed branch of a parallel group.
type BranchFailure struct {
	Branch string
	Err    error
}

// ParallelError aggregates every failed branch of a parallel group, in
// declaration order.
type ParallelError struct {
	Group    string
	Failures []BranchFailure
}

func (e *ParallelError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("%s: %v", f.Branch, f.Err))
	}

	return fmt.Sprintf("parallel group %s: %d branch(es) failed: %s", e.Group, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *ParallelError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}

	return errs
}

// Event error codes.
const (
	CodeMissingContextKey = "MISSING_CONTEXT_KEY"
	CodeUnknownTool       = "UNKNOWN_TOOL"
	CodeToolLoopExceeded  = "TOOL_LOOP_EXCEEDED"
	CodeModelInvocation   = "MODEL_INVOCATION_ERROR"
	CodeModelCallLimit    = "MODEL_CALL_LIMIT"
	CodeCancelled         = "CANCELLED"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorCode classifies err for error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, ErrMissingContextKey):
		return CodeMissingContextKey
	case errors.Is(err, ErrUnknownTool):
		return CodeUnknownTool
	case errors.Is(err, ErrToolLoopExceeded):
		return CodeToolLoopExceeded
	case errors.Is(err, ErrModelCallLimit):
		return CodeModelCallLimit
	case errors.Is(err, ErrModelInvocation):
		return CodeModelInvocation
	default:
		return CodeInternal
	}
}

package agent

import (
	"fmt"

	"github.com/hupe1980/campaignmesh/core"
)

// SequentialAgent runs its children in order against the same run state,
// so each child reads the outputs of the children before it. The first
// failure aborts the remaining children.
type SequentialAgent struct {
	BaseAgent
	children []Node
}

// NewSequentialAgent creates a sequential composer. Child names must be
// distinct.
func NewSequentialAgent(name string, children ...Node) (*SequentialAgent, error) {
	if err := checkChildNames(name, children); err != nil {
		return nil, err
	}

	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  append([]Node(nil), children...),
	}, nil
}

// WithDescription sets the description and returns the agent.
func (s *SequentialAgent) WithDescription(desc string) *SequentialAgent {
	s.description = desc
	return s
}

func (s *SequentialAgent) isNode() {}

// Kind implements Node.
func (s *SequentialAgent) Kind() Kind { return KindSequential }

// Children implements Node.
func (s *SequentialAgent) Children() []Node { return s.children }

// OutputKeys implements Node.
func (s *SequentialAgent) OutputKeys() []string { return collectOutputKeys(s.children) }

// Run implements Node. The result is the last child's result; a failure is
// returned as a *core.StageError naming the failed child.
func (s *SequentialAgent) Run(runCtx *core.RunContext) (res Result, err error) {
	rc, span := startRun(runCtx, s)
	defer func() { endSpan(span, err) }()

	rc.LogDebug("agent.sequence.start", "agent", s.Name(), "children", len(s.children))

	for i, child := range s.children {
		if err := rc.Err(); err != nil {
			rc.LogWarn("agent.sequence.cancelled", "agent", s.Name(), "next", child.Name())
			return Result{}, err
		}

		res, err = child.Run(rc)
		if err != nil {
			rc.LogWarn("agent.sequence.aborted", "agent", s.Name(), "stage", child.Name(), "step", i+1, "remaining", len(s.children)-i-1)
			return Result{}, core.WrapStage(child.Name(), err)
		}
	}

	rc.LogDebug("agent.sequence.complete", "agent", s.Name())

	return res, nil
}

func checkChildNames(parent string, children []Node) error {
	seen := make(map[string]struct{}, len(children))

	for _, c := range children {
		if c == nil {
			return fmt.Errorf("agent %s: nil child", parent)
		}

		if _, dup := seen[c.Name()]; dup {
			return fmt.Errorf("%w: %s (in %s)", core.ErrDuplicateAgentName, c.Name(), parent)
		}

		seen[c.Name()] = struct{}{}
	}

	return nil
}

func collectOutputKeys(children []Node) []string {
	var keys []string
	for _, c := range children {
		keys = append(keys, c.OutputKeys()...)
	}

	return keys
}

package campaign

import (
	"fmt"

	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/config"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/tool"
	"github.com/hupe1980/campaignmesh/tool/builtin"
)

// ModelResolver returns the model to use for a model name.
type ModelResolver func(name string) (model.Model, error)

// Deps carries what Build needs besides the definition.
type Deps struct {
	// Models resolves leaf model names. Required.
	Models ModelResolver
	// Tools holds the tools leaves may bind. Defaults to the builtin set.
	Tools *tool.Registry
	// Runtime supplies defaults for per-node limits. Zero values fall back
	// to the agent package defaults.
	Runtime config.RuntimeConfig
	// Streaming enables partial response events.
	Streaming bool
	// SeedKeys are the state keys present before the root runs.
	SeedKeys []string
}

// Build turns def into a validated agent tree. Placeholders that no
// earlier stage or seed key provides fail with core.ErrMissingContextKey;
// overlapping output keys in a parallel group fail with
// core.ErrDuplicateOutputKey.
func Build(def *Definition, deps Deps) (agent.Node, error) {
	if def == nil {
		return nil, fmt.Errorf("build: nil definition")
	}

	if deps.Models == nil {
		return nil, fmt.Errorf("build %s: no model resolver", def.Name)
	}

	if deps.Tools == nil {
		reg, err := builtin.NewRegistry(builtin.Options{})
		if err != nil {
			return nil, err
		}

		deps.Tools = reg
	}

	b := &builder{def: def, deps: deps}

	root, err := b.node(def.Root)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", def.Name, err)
	}

	if err := agent.Validate(root, deps.SeedKeys...); err != nil {
		return nil, fmt.Errorf("build %s: %w", def.Name, err)
	}

	return root, nil
}

type builder struct {
	def  *Definition
	deps Deps
}

func (b *builder) node(d AgentDef) (agent.Node, error) {
	switch d.Kind() {
	case TypeModel:
		return b.leaf(d)
	case TypeSequential:
		children, err := b.children(d)
		if err != nil {
			return nil, err
		}

		seq, err := agent.NewSequentialAgent(d.Name, children...)
		if err != nil {
			return nil, err
		}

		if d.Description != "" {
			seq = seq.WithDescription(d.Description)
		}

		return seq, nil
	case TypeParallel:
		children, err := b.children(d)
		if err != nil {
			return nil, err
		}

		par, err := agent.NewParallelAgent(d.Name, children, func(o *agent.ParallelAgentOptions) {
			o.Description = d.Description
			o.Timeout = firstPositive(d.Timeout, b.deps.Runtime.ParallelTimeout)
			o.MaxConcurrency = firstPositive(d.MaxConcurrency, b.deps.Runtime.MaxParallelism)
		})
		if err != nil {
			return nil, err
		}

		return par, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown type %q", d.Name, d.Type)
	}
}

func (b *builder) children(d AgentDef) ([]agent.Node, error) {
	nodes := make([]agent.Node, 0, len(d.Children))

	for _, c := range d.Children {
		n, err := b.node(c)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, n)
	}

	return nodes, nil
}

func (b *builder) leaf(d AgentDef) (agent.Node, error) {
	modelName := d.Model
	if modelName == "" {
		modelName = b.def.Model
	}

	if modelName == "" {
		modelName = DefaultModel
	}

	llm, err := b.deps.Models(modelName)
	if err != nil {
		return nil, fmt.Errorf("agent %s: resolve model %s: %w", d.Name, modelName, err)
	}

	tools, err := b.deps.Tools.Select(d.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", d.Name, err)
	}

	return agent.NewModelAgent(d.Name, llm, func(o *agent.ModelAgentOptions) {
		o.Description = d.Description
		o.Instruction = agent.NewInstructionFromText(d.Instruction)
		o.OutputKey = d.OutputKey
		o.Tools = tools
		o.EnableStreaming = b.deps.Streaming
		o.MaxToolIterations = firstPositive(d.MaxToolIterations, b.deps.Runtime.MaxToolIterations, agent.DefaultMaxToolIterations)
		o.ToolTimeout = firstPositive(d.ToolTimeout, b.deps.Runtime.ToolTimeout, agent.DefaultToolTimeout)
	}), nil
}

func firstPositive[T ~int | ~int64](vals ...T) T {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}

	var zero T

	return zero
}

package agent

import (
	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/internal/util"
)

// Provider supplies instruction text at run time.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a function to Provider.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a static template or a dynamic provider. Either
// way the returned text is rendered against the run state before use.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Text returns the static template, or "" for dynamic instructions.
func (i Instruction) Text() string { return i.text }

// Placeholders lists the state keys a static template reads. Dynamic
// instructions report none.
func (i Instruction) Placeholders() []string {
	if !i.IsStatic() {
		return nil
	}

	return util.Placeholders(i.text)
}

// Resolve returns the unrendered text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	return i.text, nil
}

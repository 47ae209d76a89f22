// Package campaign loads declarative agent trees and builds them into
// runnable agent.Node values. Four configurations ship embedded: simple,
// tools, sequential and parallel.
package campaign

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultModel is used by leaves that name no model.
const DefaultModel = "gemini-2.0-flash"

// Node types of an AgentDef.
const (
	TypeModel      = "model"
	TypeSequential = "sequential"
	TypeParallel   = "parallel"
)

//go:embed definitions/*.yaml
var definitionsFS embed.FS

// Definition is a named agent tree.
type Definition struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
	// Model is the default model of leaves that name none.
	Model string   `yaml:"model"`
	Root  AgentDef `yaml:"root"`
}

// AgentDef declares one node. Model leaves carry instruction, tools and
// output key; composites carry children.
type AgentDef struct {
	Name              string        `yaml:"name" validate:"required,excludesall=./"`
	Type              string        `yaml:"type" validate:"omitempty,oneof=model sequential parallel"`
	Description       string        `yaml:"description"`
	Model             string        `yaml:"model"`
	Instruction       string        `yaml:"instruction"`
	OutputKey         string        `yaml:"output_key" validate:"omitempty,excludesall={}"`
	Tools             []string      `yaml:"tools" validate:"unique,dive,required"`
	MaxToolIterations int           `yaml:"max_tool_iterations" validate:"gte=0"`
	ToolTimeout       time.Duration `yaml:"tool_timeout" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxConcurrency    int           `yaml:"max_concurrency" validate:"gte=0"`
	Children          []AgentDef    `yaml:"children" validate:"dive"`
}

// Kind returns the node type, inferring model for leaves without a type.
func (d AgentDef) Kind() string {
	if d.Type != "" {
		return d.Type
	}

	return TypeModel
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateAgentDef, AgentDef{})

	return v
}

func validateAgentDef(sl validator.StructLevel) {
	d := sl.Current().Interface().(AgentDef)

	switch d.Kind() {
	case TypeModel:
		if len(d.Children) > 0 {
			sl.ReportError(d.Children, "Children", "children", "leaf_children", "")
		}

		if strings.TrimSpace(d.Instruction) == "" {
			sl.ReportError(d.Instruction, "Instruction", "instruction", "required", "")
		}
	case TypeSequential, TypeParallel:
		if len(d.Children) == 0 {
			sl.ReportError(d.Children, "Children", "children", "required", "")
		}

		if d.OutputKey != "" || len(d.Tools) > 0 || d.Instruction != "" {
			sl.ReportError(d.Type, "Type", "type", "composite_fields", "")
		}
	}
}

// Validate checks the definition's structure. Semantic checks such as
// placeholder availability run in Build.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			msgs := make([]string, 0, len(vErrs))
			for _, fe := range vErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}

			return fmt.Errorf("invalid definition %q: %s", d.Name, strings.Join(msgs, "; "))
		}

		return fmt.Errorf("invalid definition %q: %w", d.Name, err)
	}

	return nil
}

// Parse decodes and validates a YAML definition. Unknown fields are
// rejected.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	def := &Definition{}
	if err := dec.Decode(def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}

	normalize(&def.Root)

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Load returns an embedded definition by name.
func Load(name string) (*Definition, error) {
	data, err := definitionsFS.ReadFile(path.Join("definitions", name+".yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unknown campaign %q (available: %s)", name, strings.Join(Names(), ", "))
		}

		return nil, err
	}

	return Parse(data)
}

// LoadFile reads a definition from disk.
func LoadFile(file string) (*Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	return Parse(data)
}

// Resolve loads name as an embedded definition, falling back to a file
// path.
func Resolve(nameOrPath string) (*Definition, error) {
	if slices.Contains(Names(), nameOrPath) {
		return Load(nameOrPath)
	}

	return LoadFile(nameOrPath)
}

// Names lists the embedded definitions in sorted order.
func Names() []string {
	entries, err := definitionsFS.ReadDir("definitions")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names
}

func normalize(d *AgentDef) {
	d.Instruction = strings.TrimSpace(d.Instruction)
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))

	for i := range d.Children {
		normalize(&d.Children[i])
	}
}

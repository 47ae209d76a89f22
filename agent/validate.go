package agent

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/hupe1980/campaignmesh/core"
)

// Validate checks a tree before it runs:
//   - agent names are unique across the tree
//   - every placeholder of a static instruction is available when its agent
//     runs, either from seedKeys or from an output key published earlier in
//     the same or an enclosing sequential scope
//   - a dotted placeholder such as {{research.summary}} resolves through a
//     seed key only; output keys hold plain text, which has no nested paths
//
// Parallel siblings never count as producers for each other. All problems
// are returned together; missing keys as *core.MissingContextKeyError.
func Validate(root Node, seedKeys ...string) error {
	if root == nil {
		return errors.New("validate: nil root")
	}

	var errs []error

	names := make(map[string]struct{})

	Walk(root, func(n Node, _ int) bool {
		if _, dup := names[n.Name()]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", core.ErrDuplicateAgentName, n.Name()))
		}

		names[n.Name()] = struct{}{}

		return true
	})

	// true marks seed keys, which may hold structured values.
	avail := make(map[string]bool, len(seedKeys))
	for _, k := range seedKeys {
		avail[k] = true
	}

	_, scopeErrs := validateNode(root, avail)

	return errors.Join(append(errs, scopeErrs...)...)
}

// validateNode returns the keys n publishes and the problems found in n.
// avail is never modified.
func validateNode(n Node, avail map[string]bool) ([]string, []error) {
	switch node := n.(type) {
	case *ModelAgent:
		var missing []string

		for _, key := range node.instruction.Placeholders() {
			if !isAvailable(avail, key) {
				missing = append(missing, key)
			}
		}

		if len(missing) > 0 {
			return node.OutputKeys(), []error{&core.MissingContextKeyError{Agent: node.Name(), Keys: missing}}
		}

		return node.OutputKeys(), nil
	case *SequentialAgent:
		local := maps.Clone(avail)

		var (
			produced []string
			errs     []error
		)

		for _, c := range node.children {
			keys, cErrs := validateNode(c, local)
			errs = append(errs, cErrs...)

			for _, k := range keys {
				local[k] = false
			}

			produced = append(produced, keys...)
		}

		return produced, errs
	case *ParallelAgent:
		var (
			produced []string
			errs     []error
		)

		for _, c := range node.children {
			keys, cErrs := validateNode(c, avail)
			errs = append(errs, cErrs...)
			produced = append(produced, keys...)
		}

		return produced, errs
	default:
		return nil, []error{fmt.Errorf("validate: unsupported node %T", n)}
	}
}

// isAvailable accepts key itself or, for dotted keys, a seed key prefix
// that could hold the nested value.
func isAvailable(avail map[string]bool, key string) bool {
	if _, ok := avail[key]; ok {
		return true
	}

	for i := strings.LastIndex(key, "."); i > 0; i = strings.LastIndex(key[:i], ".") {
		if avail[key[:i]] {
			return true
		}
	}

	return false
}

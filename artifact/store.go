package artifact

import (
	"fmt"
	"strings"
)

// Store keeps artifacts per session.
type Store interface {
	Save(sessionID, name string, data []byte) error
	Get(sessionID, name string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, name string) error
}

// FinalName is the artifact holding the root agent's final text.
const FinalName = "final.md"

// Export saves every output key present in state as "<key>.md", followed by
// final as FinalName when it is not empty. Keys absent from state are
// skipped. It returns the saved names in the order written.
func Export(store Store, sessionID string, outputKeys []string, state map[string]any, final string) ([]string, error) {
	saved := make([]string, 0, len(outputKeys)+1)

	for _, key := range outputKeys {
		v, ok := state[key]
		if !ok {
			continue
		}

		name := key + ".md"
		if err := store.Save(sessionID, name, []byte(render(v))); err != nil {
			return saved, fmt.Errorf("export %s: %w", key, err)
		}

		saved = append(saved, name)
	}

	if final != "" {
		if err := store.Save(sessionID, FinalName, []byte(ensureNewline(final))); err != nil {
			return saved, fmt.Errorf("export final text: %w", err)
		}

		saved = append(saved, FinalName)
	}

	return saved, nil
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return ensureNewline(s)
	}

	return ensureNewline(fmt.Sprint(v))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}

	return s + "\n"
}

func checkName(sessionID, name string) error {
	for _, s := range []string{sessionID, name} {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidName, s)
		}
	}

	return nil
}

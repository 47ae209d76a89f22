package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/campaignmesh/core"
)

// placeholderPattern matches {{key}} with optional inner whitespace. Keys may
// contain dots to address nested values.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_\-]*(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// Placeholders returns the distinct keys referenced by text in order of
// first appearance.
func Placeholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	keys := make([]string, 0, len(matches))

	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}

		seen[m[1]] = struct{}{}
		keys = append(keys, m[1])
	}

	return keys
}

// RenderTemplate substitutes every {{key}} in text with the string form of
// state[key]. A dotted key that is not present verbatim is looked up as a
// nested path. Unresolved keys yield a *core.MissingContextKeyError listing
// all of them; nothing is rendered partially.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	r := &resolver{state: state}

	var missing []string

	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]

		v, ok := r.lookup(key)
		if !ok {
			if !contains(missing, key) {
				missing = append(missing, key)
			}

			return match
		}

		return Stringify(v)
	})

	if len(missing) > 0 {
		return "", &core.MissingContextKeyError{Keys: missing}
	}

	return out, nil
}

// Stringify renders a state value for inclusion in a prompt. Strings are
// used verbatim, numbers in shortest form, records and lists as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.RawMessage:
		return string(t)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(b)
}

type resolver struct {
	state map[string]any
	doc   []byte
}

func (r *resolver) lookup(key string) (any, bool) {
	if v, ok := r.state[key]; ok {
		return v, true
	}

	if !strings.Contains(key, ".") {
		return nil, false
	}

	if r.doc == nil {
		b, err := json.Marshal(r.state)
		if err != nil {
			return nil, false
		}

		r.doc = b
	}

	res := gjson.GetBytes(r.doc, key)
	if !res.Exists() {
		return nil, false
	}

	if res.IsObject() || res.IsArray() {
		return json.RawMessage(res.Raw), true
	}

	return res.Value(), true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

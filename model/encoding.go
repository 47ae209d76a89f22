package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/campaignmesh/core"
)

// EncodeFunctionResponse renders a tool result for a provider message.
// Failures become {"error": "..."} so the model can react to them.
func EncodeFunctionResponse(fr core.FunctionResponse) string {
	if fr.Error != "" {
		b, _ := json.Marshal(map[string]string{"error": fr.Error})
		return string(b)
	}

	switch v := fr.Response.(type) {
	case nil:
		return "{}"
	case string:
		return v
	}

	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}

	return string(b)
}

// DecodeArguments parses a JSON argument object. Empty input yields an empty map.
func DecodeArguments(args string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(args) == "" {
		return out, nil
	}

	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return nil, fmt.Errorf("decode function arguments: %w", err)
	}

	return out, nil
}

// EncodeArguments renders function arguments as a JSON object string.
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}

	return string(b)
}

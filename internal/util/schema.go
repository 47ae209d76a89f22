package util

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
)

// ValidationError describes a tool argument that does not match its schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives a JSON schema object from a struct using its json,
// description and default tags. Fields without omitempty that are not
// pointers are required.
//
//	type input struct {
//		City string `json:"city,omitempty" description:"City name" default:"Islamabad"`
//	}
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if name, _, _ := strings.Cut(jsonTag, ","); name != "" {
			fieldName = name
		}

		jsonType := getJSONType(field.Type)
		fieldSchema := map[string]any{"type": jsonType}

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if def, ok := field.Tag.Lookup("default"); ok {
			if v, err := parseDefault(def, jsonType); err == nil {
				fieldSchema["default"] = v
			}
		}

		if jsonType == "array" {
			fieldSchema["items"] = map[string]any{"type": getJSONType(field.Type.Elem())}
		}

		properties[fieldName] = fieldSchema

		_, hasDefault := fieldSchema["default"]
		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) && !hasDefault {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// CoerceParameters returns a copy of params shaped to schema: declared
// defaults fill absent fields, numeric strings become numbers, integral
// floats become ints for integer fields and "true"/"false" become booleans.
// The result is validated with ValidateParameters.
func CoerceParameters(params map[string]any, schema map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	maps.Copy(out, params)

	properties, _ := schema["properties"].(map[string]any)
	for name, raw := range properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if _, present := out[name]; !present {
			if def, ok := prop["default"]; ok {
				out[name] = def
			}

			continue
		}

		expectedType, _ := prop["type"].(string)

		v, err := coerceValue(out[name], expectedType)
		if err != nil {
			return nil, &ValidationError{Field: name, Value: out[name], Message: err.Error()}
		}

		out[name] = v
	}

	if err := ValidateParameters(out, schema); err != nil {
		return nil, err
	}

	return out, nil
}

// ValidateParameters checks required fields and primitive types.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, fieldName := range RequiredFields(schema) {
		if _, exists := params[fieldName]; !exists {
			return &ValidationError{
				Field:   fieldName,
				Message: "required field is missing",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue // extra fields are allowed
		}

		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}

		expectedType, _ := propMap["type"].(string)
		if !isValidType(value, expectedType) {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}
	}

	return nil
}

// RequiredFields returns the schema's required names. It accepts both
// []string (CreateSchema) and []any (decoded JSON).
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}

		return names
	default:
		return nil
	}
}

func coerceValue(v any, expectedType string) (any, error) {
	switch expectedType {
	case "number":
		switch t := v.(type) {
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to number", t)
			}

			return f, nil
		case int:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case float32:
			return float64(t), nil
		}
	case "integer":
		switch t := v.(type) {
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to integer", t)
			}

			return int(n), nil
		case float64:
			if t != float64(int64(t)) {
				return nil, fmt.Errorf("%v is not an integer", t)
			}

			return int(t), nil
		}
	case "boolean":
		if s, ok := v.(string); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to boolean", s)
			}

			return b, nil
		}
	case "string":
		switch t := v.(type) {
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(t), nil
		}
	}

	return v, nil
}

func parseDefault(raw, jsonType string) (any, error) {
	switch jsonType {
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "integer":
		n, err := strconv.Atoi(raw)
		return n, err
	case "boolean":
		return strconv.ParseBool(raw)
	case "string":
		return raw, nil
	default:
		return nil, fmt.Errorf("defaults are not supported for %s fields", jsonType)
	}
}

func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}

	return false
}

func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}

func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON decoding yields float64
			return v == float64(int64(v))
		}

		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}

		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

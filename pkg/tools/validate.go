package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// Validate checks raw JSON parameters against a tool schema and returns
// them with schema defaults filled in. Unknown fields are rejected.
// dry_run is always accepted.
func Validate(schema mcp.ToolInputSchema, raw json.RawMessage) (Params, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("parameters are not valid JSON: %v", err)}
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &ValidationError{Message: "parameters must be a JSON object"}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, known := property(schema, key)
		if !known {
			if key == DryRunParam {
				if _, isBool := obj[key].(bool); !isBool {
					return nil, &ValidationError{Field: key, Message: "expected boolean"}
				}
				continue
			}
			return nil, &ValidationError{Field: key, Message: "unknown parameter"}
		}
		if err := checkValue(key, obj[key], prop); err != nil {
			return nil, err
		}
	}

	for _, name := range schema.Required {
		if _, present := obj[name]; !present {
			return nil, &ValidationError{Field: name, Message: "field required"}
		}
	}

	params := Params(obj)
	for name := range schema.Properties {
		if _, present := params[name]; present {
			continue
		}
		prop, _ := property(schema, name)
		if def, ok := prop["default"]; ok {
			params[name] = def
		}
	}
	if _, present := params[DryRunParam]; !present {
		params[DryRunParam] = false
	}

	return params, nil
}

func property(schema mcp.ToolInputSchema, name string) (map[string]any, bool) {
	raw, ok := schema.Properties[name]
	if !ok {
		return nil, false
	}
	prop, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}, true
	}
	return prop, true
}

func checkValue(name string, value any, prop map[string]any) error {
	expected, _ := prop["type"].(string)
	if expected != "" && !matchesType(value, expected) {
		return &ValidationError{Field: name, Message: "expected " + expected}
	}

	if enum, ok := enumValues(prop["enum"]); ok {
		found := false
		for _, allowed := range enum {
			if allowed == value {
				found = true
				break
			}
		}
		if !found {
			return &ValidationError{Field: name, Message: fmt.Sprintf("must be one of %v", enum)}
		}
	}

	if n, isNum := value.(float64); isNum {
		if lo, ok := toFloat(prop["minimum"]); ok && n < lo {
			return &ValidationError{Field: name, Message: fmt.Sprintf("must be >= %v", lo)}
		}
		if hi, ok := toFloat(prop["maximum"]); ok && n > hi {
			return &ValidationError{Field: name, Message: fmt.Sprintf("must be <= %v", hi)}
		}
	}

	return nil
}

func matchesType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		n, ok := value.(float64)
		return ok && n == math.Trunc(n)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	}
	return true
}

func enumValues(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

package tools

import (
	"fmt"
	"strings"
)

// ValidateArgs checks args against a JSON-schema shaped parameter contract:
// required fields, primitive types, enum membership, and numeric bounds.
// Returns nil when the arguments satisfy the schema.
func ValidateArgs(schema map[string]any, args map[string]any) error {
	properties, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"]; ok {
		for _, name := range toStringSlice(required) {
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}

	for name, raw := range args {
		propAny, known := properties[name]
		if !known {
			// Unknown arguments are tolerated; models pad calls occasionally.
			continue
		}
		prop, _ := propAny.(map[string]any)
		if prop == nil {
			continue
		}
		if err := validateValue(name, prop, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, prop map[string]any, value any) error {
	typ, _ := prop["type"].(string)

	switch typ {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("argument %q must be a string", name)
		}
		if enum, ok := prop["enum"]; ok {
			allowed := toStringSlice(enum)
			for _, v := range allowed {
				if v == s {
					return nil
				}
			}
			return fmt.Errorf("argument %q must be one of [%s]", name, strings.Join(allowed, ", "))
		}
	case "integer":
		f, ok := asNumber(value)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("argument %q must be an integer", name)
		}
		return checkBounds(name, prop, f)
	case "number":
		f, ok := asNumber(value)
		if !ok {
			return fmt.Errorf("argument %q must be a number", name)
		}
		return checkBounds(name, prop, f)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("argument %q must be an array", name)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("argument %q must be an object", name)
		}
	}
	return nil
}

func checkBounds(name string, prop map[string]any, v float64) error {
	if min, ok := asNumber(prop["minimum"]); ok && v < min {
		return fmt.Errorf("argument %q must be >= %v", name, min)
	}
	if max, ok := asNumber(prop["maximum"]); ok && v > max {
		return fmt.Errorf("argument %q must be <= %v", name, max)
	}
	return nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Package values defines the canonical runtime value model shared by the
// loader, the expression evaluator and the execution engine.
//
// Every value that enters the execution context is normalized first:
// mappings become map[string]any with string keys, sequences become []any,
// and integers are widened to int64. Downstream code (operators, decoders,
// exports) can therefore rely on a small, closed set of concrete types.
package values

import (
	"fmt"
	"strconv"
	"time"
)

// Secret wraps a sensitive string so it never leaks through logs, error
// snippets or rendered results. The underlying value is only reachable via
// Reveal.
type Secret struct {
	value string
}

// NewSecret wraps a string value as a Secret.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the wrapped secret value.
func (s Secret) Reveal() string {
	return s.value
}

// String implements fmt.Stringer with a masked representation.
func (s Secret) String() string {
	return "******"
}

// GoString masks the secret in %#v output as well.
func (s Secret) GoString() string {
	return `values.Secret("******")`
}

// Normalize converts an arbitrary decoded value (YAML, JSON, plugin results)
// into the canonical value model. Unsupported types are rejected so plugin
// results cannot smuggle opaque objects into the context.
func Normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool, float64, int64, []byte, time.Time, time.Duration, Secret:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			norm, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("cannot use %v as mapping key", key)
			}
			norm, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[name] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			norm, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value of type %T is not supported", value)
	}
}

// LookupPath descends into a normalized value following the given path
// segments. Map segments are keys; on sequences a decimal segment is an
// index. The boolean result reports whether the full path resolved.
func LookupPath(value any, path []string) (any, bool) {
	current := value
	for _, segment := range path {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(v) {
				return nil, false
			}
			current = v[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// Mask recursively replaces Secret values with their masked representation.
// Used when a value is about to be rendered into logs or error details.
func Mask(value any) any {
	switch v := value.(type) {
	case Secret:
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Mask(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Mask(item)
		}
		return out
	default:
		return value
	}
}

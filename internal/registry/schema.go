package registry

import (
	"fmt"
	"sort"

	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

// FieldType names the declared type of a schema field or parameter.
type FieldType string

const (
	TypeString FieldType = "str"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeList   FieldType = "list"
	TypeAny    FieldType = "any"
)

// KnownFieldType reports whether name is a declared type identifier.
func KnownFieldType(name string) bool {
	switch FieldType(name) {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeObject, TypeList, TypeAny:
		return true
	}
	return false
}

// Field describes one schema field: its type, whether it must be supplied,
// its default when absent, and whether the value is sensitive.
type Field struct {
	Type        FieldType
	Required    bool
	Default     any
	Secret      bool
	Description string
}

// Schema declares the accepted input fields of an action or the parameters
// of an operator.
type Schema map[string]Field

// FieldNames returns the schema's field names in sorted order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckShape validates field names against the schema without looking at
// values: unknown fields are rejected and required fields must be present.
// Value types cannot be checked here because a field may hold a deferred
// expression until evaluation time.
func (s Schema) CheckShape(fields map[string]bool) error {
	for name := range fields {
		if _, ok := s[name]; !ok {
			return fmt.Errorf("unknown field %q (accepted: %v)", name, s.FieldNames())
		}
	}
	for name, field := range s {
		if field.Required && !fields[name] {
			return fmt.Errorf("required field %q is missing", name)
		}
	}
	return nil
}

// Coerce validates resolved argument values against the schema, fills in
// defaults for absent optional fields and applies secret wrapping. The input
// map is not modified.
func (s Schema) Coerce(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for name, field := range s {
		value, supplied := args[name]
		if !supplied {
			if field.Required {
				return nil, fmt.Errorf("required field %q is missing", name)
			}
			if field.Default == nil {
				continue
			}
			value = field.Default
		}
		coerced, err := CoerceValue(field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if field.Secret {
			if text, ok := coerced.(string); ok {
				coerced = values.NewSecret(text)
			}
		}
		out[name] = coerced
	}
	for name := range args {
		if _, ok := s[name]; !ok {
			return nil, fmt.Errorf("unknown field %q (accepted: %v)", name, s.FieldNames())
		}
	}
	return out, nil
}

// CoerceValue checks a single normalized value against a declared type.
// Integers are accepted where floats are declared; nothing else converts
// implicitly. An explicit null only satisfies `any`.
func CoerceValue(fieldType FieldType, value any) (any, error) {
	if value == nil {
		if fieldType == TypeAny || fieldType == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("expected %s, got null", fieldType)
	}
	switch fieldType {
	case TypeAny, "":
		return value, nil
	case TypeString:
		switch v := value.(type) {
		case string:
			return v, nil
		case values.Secret:
			return v, nil
		}
	case TypeInt:
		if v, ok := value.(int64); ok {
			return v, nil
		}
	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
	case TypeBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case TypeObject:
		if v, ok := value.(map[string]any); ok {
			return v, nil
		}
	case TypeList:
		if v, ok := value.([]any); ok {
			return v, nil
		}
	default:
		return nil, fmt.Errorf("unknown declared type %q", fieldType)
	}
	return nil, fmt.Errorf("expected %s, got %T", fieldType, value)
}

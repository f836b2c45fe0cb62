package builtins

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

func registerDecoders(reg *registry.Registry) {
	reg.RegisterDecoder(&registry.Decoder{
		Name:        "json",
		Description: "Parse a JSON document into a context value.",
		Decode:      decodeJSON,
	})
	reg.RegisterDecoder(&registry.Decoder{
		Name:        "yaml",
		Description: "Parse a YAML document into a context value.",
		Decode:      decodeYAML,
	})
	reg.RegisterDecoder(&registry.Decoder{
		Name:        "text",
		Description: "Pass text through unchanged.",
		Decode:      decodeText,
	})
	reg.RegisterDecoder(&registry.Decoder{
		Name:        "markdown",
		Description: "Extract headings and fenced code blocks from Markdown.",
		Decode:      decodeMarkdown,
	})
}

// sourceBytes accepts the value kinds a !load source may evaluate to.
func sourceBytes(source any) ([]byte, error) {
	switch v := source.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case values.Secret:
		return []byte(v.Reveal()), nil
	default:
		return nil, fmt.Errorf("source must be text, got %T", source)
	}
}

func decodeJSON(source any, _ map[string]any) (any, error) {
	data, err := sourceBytes(source)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeYAML(source any, _ map[string]any) (any, error) {
	data, err := sourceBytes(source)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeText(source any, _ map[string]any) (any, error) {
	data, err := sourceBytes(source)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

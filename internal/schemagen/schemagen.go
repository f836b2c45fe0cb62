// Package schemagen renders the registered DSL surface as a JSON document:
// every action with its input schema, every operator with its aliases and
// parameters, the content decoder formats and the expression tags. Editor
// tooling and documentation builds consume it; the runner itself never reads
// it back.
package schemagen

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/frherrer/GoE2E-LocoRunner/internal/expr"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

type fieldDoc struct {
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Secret      bool   `json:"secret,omitempty"`
	Description string `json:"description,omitempty"`
}

type actionDoc struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Fields      map[string]fieldDoc `json:"fields,omitempty"`
}

type operatorDoc struct {
	Name    string              `json:"name"`
	Aliases []string            `json:"aliases,omitempty"`
	Params  map[string]fieldDoc `json:"params,omitempty"`
}

type decoderDoc struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Document is the serialized DSL surface.
type Document struct {
	Actions   []actionDoc   `json:"actions"`
	Operators []operatorDoc `json:"operators"`
	Decoders  []decoderDoc  `json:"decoders"`
	Tags      []string      `json:"tags"`
}

// Generate builds the schema document from a populated registry.
func Generate(reg *registry.Registry) *Document {
	doc := &Document{Tags: expr.Tags()}

	for _, action := range reg.Actions() {
		doc.Actions = append(doc.Actions, actionDoc{
			Name:        action.Name,
			Description: action.Description,
			Fields:      schemaDoc(action.Schema),
		})
	}
	sort.Slice(doc.Actions, func(i, j int) bool { return doc.Actions[i].Name < doc.Actions[j].Name })

	for _, op := range reg.Operators() {
		aliases := append([]string(nil), op.Aliases...)
		sort.Strings(aliases)
		doc.Operators = append(doc.Operators, operatorDoc{
			Name:    op.Name,
			Aliases: aliases,
			Params:  schemaDoc(op.Params),
		})
	}
	sort.Slice(doc.Operators, func(i, j int) bool { return doc.Operators[i].Name < doc.Operators[j].Name })

	for _, dec := range reg.Decoders() {
		doc.Decoders = append(doc.Decoders, decoderDoc{Name: dec.Name, Description: dec.Description})
	}
	sort.Slice(doc.Decoders, func(i, j int) bool { return doc.Decoders[i].Name < doc.Decoders[j].Name })

	return doc
}

// Marshal renders the schema document as indented JSON.
func Marshal(reg *registry.Registry) ([]byte, error) {
	return json.MarshalIndent(Generate(reg), "", "  ")
}

// WriteFile generates the schema document and writes it to path.
func WriteFile(reg *registry.Registry, path string) error {
	data, err := Marshal(reg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func schemaDoc(schema registry.Schema) map[string]fieldDoc {
	if len(schema) == 0 {
		return nil
	}
	out := make(map[string]fieldDoc, len(schema))
	for name, field := range schema {
		out[name] = fieldDoc{
			Type:        string(field.Type),
			Required:    field.Required,
			Default:     field.Default,
			Secret:      field.Secret,
			Description: field.Description,
		}
	}
	return out
}

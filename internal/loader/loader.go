// Package loader reads scenario files: multi-document YAML streams headed by
// a case or template document followed by step documents.
//
// All structural and schema validation happens here, before anything runs: a
// file either loads completely into typed documents with compiled
// expressions, or fails with a parse error that names the offending
// position. Validation needs the registry populated, because step fields are
// checked against the registered action's schema and expectation operators
// are resolved (aliases included) at load time.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/expr"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

const phase = "load"

// includeSchema is the input contract of the reserved include action. The
// step-level vars mapping doubles as the parameter transfer, so file is the
// only action-specific field.
var includeSchema = registry.Schema{
	"file": {Type: registry.TypeString, Required: true, Description: "Template file to include."},
}

// Loader parses and validates scenario files against a populated registry.
type Loader struct {
	reg      *registry.Registry
	compiler *expr.Compiler
}

// New returns a Loader backed by the given registry.
func New(reg *registry.Registry) *Loader {
	return &Loader{reg: reg, compiler: expr.NewCompiler(reg)}
}

// LoadFS opens and loads one scenario file from a filesystem.
func (l *Loader) LoadFS(fsys fs.FS, path string) (*domain.Document, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, domain.NewParseError(phase, path, 0, "cannot open scenario file", err)
	}
	defer file.Close()
	return l.Load(path, file)
}

// Load parses one scenario file from a reader. The name is used in error
// reporting only.
func (l *Loader) Load(name string, r io.Reader) (*domain.Document, error) {
	decoder := yaml.NewDecoder(r)

	var nodes []*yaml.Node
	for {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewParseError(phase, name, 0, "invalid YAML", err)
		}
		nodes = append(nodes, unwrapDocument(&node))
	}
	if len(nodes) == 0 {
		return nil, domain.NewParseError(phase, name, 0, "file contains no documents", nil)
	}

	header, err := l.parseHeader(name, nodes[0])
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{File: name, Header: header}
	for i, node := range nodes[1:] {
		step, err := l.parseStep(name, node, i+1)
		if err != nil {
			return nil, err
		}
		doc.Steps = append(doc.Steps, step)
	}
	return doc, nil
}

func unwrapDocument(node *yaml.Node) *yaml.Node {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return node.Content[0]
	}
	return node
}

// specOf peeks the spec discriminant of a document node without validating
// the rest.
func specOf(node *yaml.Node) string {
	if node.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "spec" {
			return node.Content[i+1].Value
		}
	}
	return ""
}

func (l *Loader) parseError(file string, node *yaml.Node, format string, args ...any) error {
	line := 0
	if node != nil {
		line = node.Line
	}
	return domain.NewParseError(phase, file, line, fmt.Sprintf(format, args...), nil)
}

// wrapCompile converts an expression compile failure into a parse error with
// file context.
func (l *Loader) wrapCompile(file string, err error) error {
	var compileErr *expr.CompileError
	if errors.As(err, &compileErr) {
		return domain.NewParseError(phase, file, compileErr.Line, compileErr.Message, nil)
	}
	return domain.NewParseError(phase, file, 0, "invalid expression", err)
}

// mappingEntries returns a document mapping as ordered key/value node pairs.
func (l *Loader) mappingEntries(file string, node *yaml.Node) ([][2]*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, l.parseError(file, node, "document must be a mapping")
	}
	seen := map[string]bool{}
	entries := make([][2]*yaml.Node, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, l.parseError(file, key, "document keys must be scalars")
		}
		if seen[key.Value] {
			return nil, l.parseError(file, key, "duplicate key %q", key.Value)
		}
		seen[key.Value] = true
		entries = append(entries, [2]*yaml.Node{key, node.Content[i+1]})
	}
	return entries, nil
}

func scalarString(file string, l *Loader, node *yaml.Node, what string) (string, error) {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!str" {
		return "", l.parseError(file, node, "%s must be a string", what)
	}
	return node.Value, nil
}

// compileBindings compiles a vars/export style mapping into ordered
// bindings, validating each name.
func (l *Loader) compileBindings(file string, node *yaml.Node, what string) ([]domain.Binding, error) {
	if node.Kind != yaml.MappingNode {
		return nil, l.parseError(file, node, "%s must be a mapping", what)
	}
	var bindings []domain.Binding
	seen := map[string]bool{}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Kind != yaml.ScalarNode || !registry.ValidVariableName(key.Value) {
			return nil, l.parseError(file, key, "invalid %s variable name %q", what, key.Value)
		}
		if seen[key.Value] {
			return nil, l.parseError(file, key, "duplicate %s variable %q", what, key.Value)
		}
		seen[key.Value] = true
		compiled, err := l.compiler.Compile(node.Content[i+1])
		if err != nil {
			return nil, l.wrapCompile(file, err)
		}
		bindings = append(bindings, domain.Binding{Name: key.Value, Value: compiled})
	}
	return bindings, nil
}

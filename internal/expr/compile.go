package expr

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

// Recognized custom tags. Everything else starting with "!" that is not a
// standard YAML tag is rejected at compile time.
const (
	TagVar    = "!var"
	TagCtx    = "!ctx"
	TagSecret = "!secret"
	TagURL    = "!url"
	TagLoad   = "!load"
	TagBase64 = "!base64"
)

// Tags lists every recognized custom tag, for editor tooling.
func Tags() []string {
	return []string{TagVar, TagCtx, TagSecret, TagURL, TagLoad, TagBase64}
}

var whitespace = regexp.MustCompile(`\s`)

// CompileError reports a structurally invalid expression, carrying the
// source position of the offending YAML node.
type CompileError struct {
	Line    int
	Column  int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

func compileErrorf(node *yaml.Node, format string, args ...any) error {
	return &CompileError{
		Line:    node.Line,
		Column:  node.Column,
		Message: fmt.Sprintf(format, args...),
	}
}

// Compiler turns YAML nodes into compiled expressions. It needs the registry
// to validate !load formats at compile time.
type Compiler struct {
	reg *registry.Registry
}

// NewCompiler returns a Compiler backed by the given registry.
func NewCompiler(reg *registry.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile builds an expression tree from a YAML node. Shape is validated
// here; no context path is ever evaluated.
func (c *Compiler) Compile(node *yaml.Node) (Expr, error) {
	if node.Kind == yaml.AliasNode {
		return c.Compile(node.Alias)
	}

	switch node.Tag {
	case TagVar, TagCtx:
		return c.compileVar(node, false)
	case TagSecret:
		return c.compileVar(node, true)
	case TagURL:
		return c.compileURL(node)
	case TagLoad:
		return c.compileLoad(node)
	case TagBase64:
		return c.compileBase64(node)
	}

	if strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!") {
		return nil, compileErrorf(node, "unrecognized tag %q", node.Tag)
	}

	switch node.Kind {
	case yaml.MappingNode:
		return c.compileMapping(node)
	case yaml.SequenceNode:
		return c.compileSequence(node)
	default:
		return c.compileLiteral(node)
	}
}

func (c *Compiler) compileVar(node *yaml.Node, secret bool) (Expr, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, compileErrorf(node, "%s expects a scalar context path", node.Tag)
	}
	path := strings.TrimSpace(node.Value)
	first, _, _ := strings.Cut(path, ".")
	if !registry.ValidVariableName(first) {
		return nil, compileErrorf(node, "invalid context path %q", path)
	}
	if secret {
		return &SecretVar{Path: path}, nil
	}
	return &Var{Path: path}, nil
}

func (c *Compiler) compileURL(node *yaml.Node) (Expr, error) {
	fields, err := c.mappingFields(node, "!url")
	if err != nil {
		return nil, err
	}
	base, ok := fields["base"]
	if !ok {
		return nil, compileErrorf(node, "!url requires a base")
	}
	path, ok := fields["path"]
	if !ok {
		return nil, compileErrorf(node, "!url requires a path")
	}
	if len(fields) > 2 {
		return nil, compileErrorf(node, "!url accepts only base and path")
	}
	baseExpr, err := c.Compile(base)
	if err != nil {
		return nil, err
	}
	pathExpr, err := c.Compile(path)
	if err != nil {
		return nil, err
	}
	return &URLJoin{Base: baseExpr, Path: pathExpr}, nil
}

func (c *Compiler) compileLoad(node *yaml.Node) (Expr, error) {
	fields, err := c.mappingFields(node, "!load")
	if err != nil {
		return nil, err
	}
	source, ok := fields["source"]
	if !ok {
		return nil, compileErrorf(node, "!load requires a source")
	}
	format, ok := fields["format"]
	if !ok {
		return nil, compileErrorf(node, "!load requires a format")
	}
	if len(fields) > 2 {
		return nil, compileErrorf(node, "!load accepts only source and format")
	}
	if format.Kind != yaml.ScalarNode {
		return nil, compileErrorf(format, "!load format must be a scalar decoder name")
	}
	decoder, ok := c.reg.Decoder(format.Value)
	if !ok {
		return nil, compileErrorf(format, "unknown content format %q", format.Value)
	}
	sourceExpr, err := c.Compile(source)
	if err != nil {
		return nil, err
	}
	return &Load{Source: sourceExpr, Format: format.Value, decoder: decoder}, nil
}

func (c *Compiler) compileBase64(node *yaml.Node) (Expr, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, compileErrorf(node, "!base64 expects scalar data")
	}
	data := whitespace.ReplaceAllString(node.Value, "")
	if padding := len(data) % 4; padding != 0 {
		data += strings.Repeat("=", 4-padding)
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, compileErrorf(node, "invalid base64 data: %v", err)
	}
	return &Literal{Value: decoded}, nil
}

func (c *Compiler) compileMapping(node *yaml.Node) (Expr, error) {
	mapping := &Mapping{Items: map[string]Expr{}}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, compileErrorf(key, "mapping keys must be scalars")
		}
		if _, exists := mapping.Items[key.Value]; exists {
			return nil, compileErrorf(key, "duplicate mapping key %q", key.Value)
		}
		item, err := c.Compile(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		mapping.Keys = append(mapping.Keys, key.Value)
		mapping.Items[key.Value] = item
	}
	return foldMapping(mapping), nil
}

func (c *Compiler) compileSequence(node *yaml.Node) (Expr, error) {
	sequence := &Sequence{Items: make([]Expr, 0, len(node.Content))}
	for _, item := range node.Content {
		compiled, err := c.Compile(item)
		if err != nil {
			return nil, err
		}
		sequence.Items = append(sequence.Items, compiled)
	}
	return foldSequence(sequence), nil
}

func (c *Compiler) compileLiteral(node *yaml.Node) (Expr, error) {
	var decoded any
	if err := node.Decode(&decoded); err != nil {
		return nil, compileErrorf(node, "invalid scalar value: %v", err)
	}
	normalized, err := values.Normalize(decoded)
	if err != nil {
		return nil, compileErrorf(node, "unsupported value: %v", err)
	}
	return &Literal{Value: normalized}, nil
}

func (c *Compiler) mappingFields(node *yaml.Node, tag string) (map[string]*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, compileErrorf(node, "%s expects a mapping", tag)
	}
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Kind != yaml.ScalarNode {
			return nil, compileErrorf(key, "%s keys must be scalars", tag)
		}
		fields[key.Value] = node.Content[i+1]
	}
	return fields, nil
}

// foldMapping collapses a mapping of literals into a single literal so fully
// static documents cost nothing at evaluation time.
func foldMapping(m *Mapping) Expr {
	out := make(map[string]any, len(m.Keys))
	for _, key := range m.Keys {
		value, ok := LiteralValue(m.Items[key])
		if !ok {
			return m
		}
		out[key] = value
	}
	return &Literal{Value: out}
}

func foldSequence(s *Sequence) Expr {
	out := make([]any, len(s.Items))
	for i, item := range s.Items {
		value, ok := LiteralValue(item)
		if !ok {
			return s
		}
		out[i] = value
	}
	return &Literal{Value: out}
}

package domain

import (
	"github.com/frherrer/GoE2E-LocoRunner/internal/expr"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

// DocumentKind discriminates header documents.
type DocumentKind string

const (
	KindCase     DocumentKind = "case"
	KindTemplate DocumentKind = "template"
	KindStep     DocumentKind = "step"
)

// IncludeAction is the action identifier reserved by the core for template
// inclusion.
const IncludeAction = "include"

// DefaultOutput is the context variable a step result is stored under when
// the step does not name one.
const DefaultOutput = "result"

// Metadata holds free-form header metadata.
type Metadata map[string]any

// Tags returns metadata.tags as a string slice, or nil.
func (m Metadata) Tags() []string {
	raw, ok := m["tags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, item := range raw {
		if tag, ok := item.(string); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Param is one typed parameter declaration of a case or template. A param
// without a default must be supplied at invocation.
type Param struct {
	Name        string
	Type        registry.FieldType
	Default     any
	HasDefault  bool
	Secret      bool
	Description string
}

// Required reports whether the parameter must be supplied by the caller.
func (p Param) Required() bool {
	return !p.HasDefault
}

// Binding is one ordered name/expression pair, used for vars and export
// blocks where declaration order is part of the contract.
type Binding struct {
	Name  string
	Value expr.Expr
}

// EnvBinding maps a context variable to the environment variable it is
// sourced from at run start.
type EnvBinding struct {
	Name   string
	EnvVar string
}

// Header is the first document of a scenario file: a runnable case or a
// reusable template.
type Header struct {
	Kind        DocumentKind
	Title       string
	Description string
	Metadata    Metadata
	Vars        []Binding
	Params      []Param
	Envs        []EnvBinding
}

// Param returns the declared parameter with the given name.
func (h *Header) Param(name string) (Param, bool) {
	for _, param := range h.Params {
		if param.Name == name {
			return param, true
		}
	}
	return Param{}, false
}

// Expectation is one post-export assertion of a step: an evaluated value,
// an operator resolved at load time, its operand and operator parameters.
type Expectation struct {
	Title    string
	Value    expr.Expr
	Operator *registry.Operator
	// Spelled is the operator name as written in the document (possibly an
	// alias), kept for reporting.
	Spelled string
	Operand expr.Expr
	Params  []Binding
	Line    int
}

// Step is one executable document: an action invocation plus its vars,
// output binding, export block and expectations.
type Step struct {
	Title       string
	Description string
	Action      string
	Vars        []Binding
	Args        []Binding
	Output      string
	Export      []Binding
	Expect      []Expectation
	Line        int
}

// Arg returns the compiled expression bound to an action field.
func (s *Step) Arg(name string) (expr.Expr, bool) {
	for _, arg := range s.Args {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// IsInclude reports whether the step invokes the reserved include action.
func (s *Step) IsInclude() bool {
	return s.Action == IncludeAction
}

// Document is one fully loaded and validated scenario file before template
// resolution: its header plus the raw step sequence.
type Document struct {
	File   string
	Header *Header
	Steps  []*Step
}

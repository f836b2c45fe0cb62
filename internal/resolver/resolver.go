// Package resolver expands template inclusion into a flat execution graph.
//
// Resolution happens entirely at load time: by the time a graph reaches the
// engine it contains no unresolved include nodes, only ordinary steps plus
// enter/exit markers delimiting each template window. The markers let the
// engine push and pop isolated context frames without any recursion at run
// time. Circular inclusion is detected with a visitation set kept for the
// duration of one resolution.
package resolver

import (
	"io/fs"
	"path"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/expr"
	"github.com/frherrer/GoE2E-LocoRunner/internal/loader"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

const phase = "resolve"

// NodeKind discriminates graph nodes.
type NodeKind int

const (
	// NodeStep executes an ordinary step.
	NodeStep NodeKind = iota
	// NodeEnter opens a template window: an isolated context frame seeded
	// with the template's declared parameters.
	NodeEnter
	// NodeExit closes a template window and runs the include step's own
	// output/export/expect against the caller's context.
	NodeExit
)

// Frame describes one resolved template invocation.
type Frame struct {
	// Template is the included template's header.
	Template *domain.Header
	// File is the template's source file, for error reporting.
	File string
	// Params holds one binding per declared parameter: the caller-supplied
	// expression (evaluated against the caller's context at window entry)
	// or the declared default.
	Params []domain.Binding
	// Include is the include step in the calling document.
	Include *domain.Step
}

// Node is one entry of the flattened execution graph.
type Node struct {
	Kind  NodeKind
	Step  *domain.Step // set for NodeStep only
	Frame *Frame       // set for NodeEnter and NodeExit
	File  string       // source file of the step, for error reporting
}

// Graph is the flattened, ordered step sequence of one case. It is built
// once at load time and never mutated afterwards.
type Graph struct {
	Case  *domain.Header
	File  string
	Nodes []Node
}

// Resolver expands includes using a loader and the filesystem the scenario
// files live on.
type Resolver struct {
	loader *loader.Loader
	fsys   fs.FS
}

// New returns a Resolver reading template files from fsys.
func New(ld *loader.Loader, fsys fs.FS) *Resolver {
	return &Resolver{loader: ld, fsys: fsys}
}

// Resolve builds the execution graph for a loaded case document.
func (r *Resolver) Resolve(doc *domain.Document) (*Graph, error) {
	if doc.Header.Kind != domain.KindCase {
		return nil, domain.NewParseError(phase, doc.File, 0, "only a case document can be resolved into a graph", nil)
	}
	graph := &Graph{Case: doc.Header, File: doc.File}
	visiting := map[string]bool{doc.File: true}
	if err := r.expand(graph, doc, visiting); err != nil {
		return nil, err
	}
	return graph, nil
}

func (r *Resolver) expand(graph *Graph, doc *domain.Document, visiting map[string]bool) error {
	for _, step := range doc.Steps {
		if !step.IsInclude() {
			graph.Nodes = append(graph.Nodes, Node{Kind: NodeStep, Step: step, File: doc.File})
			continue
		}
		if err := r.expandInclude(graph, doc, step, visiting); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) expandInclude(graph *Graph, doc *domain.Document, step *domain.Step, visiting map[string]bool) error {
	fileArg, _ := step.Arg("file")
	ref, _ := expr.LiteralValue(fileArg)
	target := path.Join(path.Dir(doc.File), ref.(string))

	if visiting[target] {
		return domain.NewParseError(phase, doc.File, step.Line,
			"circular template inclusion of "+target, nil)
	}

	template, err := r.loader.LoadFS(r.fsys, target)
	if err != nil {
		return err
	}
	if template.Header.Kind != domain.KindTemplate {
		return domain.NewParseError(phase, target, 0, "included file is not a template", nil)
	}

	frame := &Frame{Template: template.Header, File: target, Include: step}
	if frame.Params, err = r.bindParams(doc.File, step, template.Header); err != nil {
		return err
	}

	graph.Nodes = append(graph.Nodes, Node{Kind: NodeEnter, Frame: frame, File: doc.File})
	visiting[target] = true
	if err := r.expand(graph, template, visiting); err != nil {
		return err
	}
	delete(visiting, target)
	graph.Nodes = append(graph.Nodes, Node{Kind: NodeExit, Frame: frame, File: doc.File})
	return nil
}

// bindParams checks the include's vars mapping against the template's
// declared parameters: undeclared names are rejected, required parameters
// must be supplied, defaults fill the rest. Literal values are type-checked
// here; deferred ones at window entry.
func (r *Resolver) bindParams(file string, step *domain.Step, template *domain.Header) ([]domain.Binding, error) {
	supplied := map[string]expr.Expr{}
	for _, binding := range step.Vars {
		supplied[binding.Name] = binding.Value
	}

	for _, binding := range step.Vars {
		param, declared := template.Param(binding.Name)
		if !declared {
			return nil, domain.NewParseError(phase, file, step.Line,
				"template "+template.Title+" declares no parameter "+binding.Name, nil)
		}
		if literal, ok := expr.LiteralValue(binding.Value); ok && literal != nil {
			if _, err := registry.CoerceValue(param.Type, literal); err != nil {
				return nil, domain.NewParseError(phase, file, step.Line,
					"template parameter "+binding.Name+" has wrong type", err)
			}
		}
	}

	var bindings []domain.Binding
	for _, param := range template.Params {
		if value, ok := supplied[param.Name]; ok {
			bindings = append(bindings, domain.Binding{Name: param.Name, Value: value})
			continue
		}
		if param.Required() {
			return nil, domain.NewParseError(phase, file, step.Line,
				"template parameter "+param.Name+" is required", nil)
		}
		bindings = append(bindings, domain.Binding{Name: param.Name, Value: &expr.Literal{Value: param.Default}})
	}
	return bindings, nil
}

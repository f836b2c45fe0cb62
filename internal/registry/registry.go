// Package registry provides the process-wide table of scenario extensions.
//
// Three namespaces are kept apart: actions (executable step verbs),
// expectation operators (assertion verbs plus their aliases) and content
// decoders (formats usable by the !load expression). The registry is
// populated once at startup, frozen, and then queried read-only for the
// lifetime of the process, so concurrent case runs need no locking.
package registry

import (
	"fmt"
	"regexp"
	"sync"
)

var (
	variablePattern = regexp.MustCompile(`^[a-zA-Z]\w*$`)
	actionPattern   = regexp.MustCompile(`^([a-zA-Z]\w*\.)?[a-zA-Z]\w*$`)
)

// ValidVariableName reports whether name is a legal context variable name.
func ValidVariableName(name string) bool {
	return variablePattern.MatchString(name)
}

// ValidActionName reports whether name is a legal, optionally dot-namespaced
// action identifier such as "debug" or "http.get".
func ValidActionName(name string) bool {
	return actionPattern.MatchString(name)
}

// ActionFunc implements an action. It receives resolved, schema-coerced
// arguments and returns the step result value. Errors become runtime
// failures of the owning step; they never escape the case boundary.
type ActionFunc func(args map[string]any) (any, error)

// Action is a registered step implementation together with its input schema.
type Action struct {
	Name        string
	Description string
	Schema      Schema
	Run         ActionFunc
}

// OperatorFunc applies an expectation operator to an evaluated value.
// It returns pass/fail plus a human-readable detail string.
type OperatorFunc func(value, operand any, params map[string]any) (bool, string, error)

// Operator is a registered expectation operator with its alias set and
// optional operator parameters (e.g. partial_match, ignore_case).
type Operator struct {
	Name    string
	Aliases []string
	Params  Schema
	Apply   OperatorFunc
}

// DecoderFunc parses a source value according to a named content format.
type DecoderFunc func(source any, params map[string]any) (any, error)

// Decoder is a registered content format for the !load expression.
type Decoder struct {
	Name        string
	Description string
	Decode      DecoderFunc
}

// Registry holds all registered extensions. The zero value is not usable;
// call New.
type Registry struct {
	mu      sync.RWMutex
	frozen  bool
	actions map[string]*Action
	// operators maps canonical names; operatorNames maps every accepted
	// spelling (canonical and alias) to the canonical name.
	operators     map[string]*Operator
	operatorNames map[string]string
	decoders      map[string]*Decoder
}

// New returns an empty, unfrozen registry.
func New() *Registry {
	return &Registry{
		actions:       map[string]*Action{},
		operators:     map[string]*Operator{},
		operatorNames: map[string]string{},
		decoders:      map[string]*Decoder{},
	}
}

func (r *Registry) guard(kind, name string) {
	if r.frozen {
		panic(fmt.Sprintf("registry is frozen, cannot register %s %q", kind, name))
	}
}

// RegisterAction adds an action implementation. Registering a duplicate or
// invalid name, or registering after Freeze, is a programming error.
func (r *Registry) RegisterAction(action *Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guard("action", action.Name)
	if !ValidActionName(action.Name) {
		panic(fmt.Sprintf("invalid action name %q", action.Name))
	}
	if _, exists := r.actions[action.Name]; exists {
		panic(fmt.Sprintf("action %q already registered", action.Name))
	}
	r.actions[action.Name] = action
}

// RegisterOperator adds an expectation operator under its canonical name and
// every alias.
func (r *Registry) RegisterOperator(op *Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guard("operator", op.Name)
	for _, name := range append([]string{op.Name}, op.Aliases...) {
		if !ValidVariableName(name) {
			panic(fmt.Sprintf("invalid operator name %q", name))
		}
		if _, exists := r.operatorNames[name]; exists {
			panic(fmt.Sprintf("operator %q already registered", name))
		}
		r.operatorNames[name] = op.Name
	}
	r.operators[op.Name] = op
}

// RegisterDecoder adds a content decoder format.
func (r *Registry) RegisterDecoder(dec *Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guard("decoder", dec.Name)
	if !ValidVariableName(dec.Name) {
		panic(fmt.Sprintf("invalid decoder name %q", dec.Name))
	}
	if _, exists := r.decoders[dec.Name]; exists {
		panic(fmt.Sprintf("decoder %q already registered", dec.Name))
	}
	r.decoders[dec.Name] = dec
}

// Freeze marks the registry read-only. All registration must happen before
// any case begins executing.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Action looks up an action by its qualified name.
func (r *Registry) Action(name string) (*Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[name]
	return action, ok
}

// Operator resolves an operator by canonical name or alias.
func (r *Registry) Operator(name string) (*Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, ok := r.operatorNames[name]
	if !ok {
		return nil, false
	}
	return r.operators[canonical], true
}

// Decoder looks up a content decoder by format name.
func (r *Registry) Decoder(name string) (*Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dec, ok := r.decoders[name]
	return dec, ok
}

// Actions returns all registered actions keyed by name.
func (r *Registry) Actions() map[string]*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Action, len(r.actions))
	for name, action := range r.actions {
		out[name] = action
	}
	return out
}

// Operators returns all registered operators keyed by canonical name.
func (r *Registry) Operators() map[string]*Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Operator, len(r.operators))
	for name, op := range r.operators {
		out[name] = op
	}
	return out
}

// Decoders returns all registered decoders keyed by format name.
func (r *Registry) Decoders() map[string]*Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Decoder, len(r.decoders))
	for name, dec := range r.decoders {
		out[name] = dec
	}
	return out
}

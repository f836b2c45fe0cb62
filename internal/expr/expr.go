// Package expr implements the deferred expression language embedded in
// scenario documents.
//
// Expressions have two strictly separated phases. Compile walks a YAML node,
// recognizes custom tags (!var, !secret, !url, !load, !base64) and builds a
// closed set of AST node kinds, validating argument shape only. Eval resolves
// a compiled node against a live scope.Context, producing a value or a
// runtime failure. Evaluation reads the context and nothing else, so
// repeating it against an unmodified context yields the same value.
package expr

import (
	"fmt"
	"net/url"

	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/scope"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

// Expr is a compiled expression node. Eval never mutates the context.
type Expr interface {
	Eval(ctx *scope.Context) (any, error)
}

// Literal holds a fully resolved value known at compile time.
type Literal struct {
	Value any
}

// Eval returns the literal value unchanged.
func (l *Literal) Eval(_ *scope.Context) (any, error) {
	return l.Value, nil
}

// Var resolves a dotted context path such as "result.status".
type Var struct {
	Path string
}

// Eval looks the path up in the context. A missing path is a runtime error.
func (v *Var) Eval(ctx *scope.Context) (any, error) {
	value, ok := ctx.Lookup(v.Path)
	if !ok {
		return nil, fmt.Errorf("context path %q cannot be resolved", v.Path)
	}
	return value, nil
}

// SecretVar resolves a dotted context path and unwraps a Secret value so it
// can be handed to an action. Non-secret values pass through unchanged.
type SecretVar struct {
	Path string
}

// Eval resolves the path and reveals the secret.
func (v *SecretVar) Eval(ctx *scope.Context) (any, error) {
	value, ok := ctx.Lookup(v.Path)
	if !ok {
		return nil, fmt.Errorf("context path %q cannot be resolved", v.Path)
	}
	if secret, ok := value.(values.Secret); ok {
		return secret.Reveal(), nil
	}
	return value, nil
}

// URLJoin composes an absolute URL from a base and a relative path. Both
// operands may themselves be deferred expressions.
type URLJoin struct {
	Base Expr
	Path Expr
}

// Eval evaluates base then path and joins them.
func (u *URLJoin) Eval(ctx *scope.Context) (any, error) {
	base, err := evalString(u.Base, ctx, "url base")
	if err != nil {
		return nil, err
	}
	path, err := evalString(u.Path, ctx, "url path")
	if err != nil {
		return nil, err
	}
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return nil, fmt.Errorf("cannot join url %q with %q: %w", base, path, err)
	}
	return joined, nil
}

// Load parses a source value using a named content format. The source is
// evaluated first (it may itself be a lookup), then handed to the decoder
// registered under Format.
type Load struct {
	Source Expr
	Format string

	decoder *registry.Decoder
}

// Eval evaluates the source depth-first and decodes it.
func (l *Load) Eval(ctx *scope.Context) (any, error) {
	source, err := l.Source.Eval(ctx)
	if err != nil {
		return nil, err
	}
	decoded, err := l.decoder.Decode(source, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s content: %w", l.Format, err)
	}
	normalized, err := values.Normalize(decoded)
	if err != nil {
		return nil, fmt.Errorf("decoder %q returned an unsupported value: %w", l.Format, err)
	}
	return normalized, nil
}

// Mapping is a YAML mapping whose values may contain nested expressions.
// Keys keep document order so dependent evaluation stays deterministic.
type Mapping struct {
	Keys  []string
	Items map[string]Expr
}

// Eval evaluates every entry in declaration order.
func (m *Mapping) Eval(ctx *scope.Context) (any, error) {
	out := make(map[string]any, len(m.Keys))
	for _, key := range m.Keys {
		value, err := m.Items[key].Eval(ctx)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

// Sequence is a YAML sequence whose items may contain nested expressions.
type Sequence struct {
	Items []Expr
}

// Eval evaluates every item left to right.
func (s *Sequence) Eval(ctx *scope.Context) (any, error) {
	out := make([]any, len(s.Items))
	for i, item := range s.Items {
		value, err := item.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

func evalString(e Expr, ctx *scope.Context, what string) (string, error) {
	value, err := e.Eval(ctx)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case values.Secret:
		return v.Reveal(), nil
	default:
		return "", fmt.Errorf("%s must be a string, got %T", what, value)
	}
}

// LiteralValue reports whether the expression is fully resolved at compile
// time and, if so, returns its value.
func LiteralValue(e Expr) (any, bool) {
	lit, ok := e.(*Literal)
	if !ok {
		return nil, false
	}
	return lit.Value, true
}

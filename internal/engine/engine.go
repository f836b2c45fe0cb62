// Package engine executes resolved scenario graphs.
//
// A run walks the flat node sequence produced by the resolver: ordinary steps
// plus enter/exit markers for template windows. Each run owns a fresh scope
// context, so running the same graph twice from the same inputs yields the
// same result. Execution is strictly sequential and stops at the first
// failing step; expectation results gathered before the failure are retained
// in the case result.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/resolver"
	"github.com/frherrer/GoE2E-LocoRunner/internal/scope"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

// Engine runs resolved cases against a frozen registry.
type Engine struct {
	reg    *registry.Registry
	log    *logrus.Logger
	getenv func(string) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger the engine reports step progress on.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithGetenv overrides environment lookup, used by tests to run cases with
// envs blocks hermetically.
func WithGetenv(fn func(string) string) Option {
	return func(e *Engine) { e.getenv = fn }
}

// New returns an Engine. The registry is frozen on the first run at the
// latest; registration after that is a programming error.
func New(reg *registry.Registry, opts ...Option) *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := &Engine{reg: reg, log: log, getenv: os.Getenv}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// frameState is the engine-side bookkeeping for one active context frame:
// the exports accumulated inside it, collected at window exit.
type frameState struct {
	exports map[string]any
}

// Run executes a resolved case. Supplied params are checked against the
// case's declarations before anything runs; a violation is returned as a
// parse-class error and the case never starts. Runtime failures do not
// produce a non-nil error: they are recorded in the returned result.
func (e *Engine) Run(graph *resolver.Graph, params map[string]any) (*domain.CaseResult, error) {
	e.reg.Freeze()

	caseParams, err := e.bindCaseParams(graph, params)
	if err != nil {
		return nil, err
	}

	result := &domain.CaseResult{
		RunID:  uuid.NewString(),
		File:   graph.File,
		Title:  graph.Case.Title,
		Status: domain.StatusPending,
	}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	log := e.log.WithFields(logrus.Fields{"run": result.RunID, "case": result.Title})
	log.Info("case started")
	result.Status = domain.StatusRunning

	ctx := scope.New()
	if err := e.bindHeader(ctx, graph.Case, caseParams); err != nil {
		result.Status = domain.StatusFailed
		result.Err = e.runtimeError("env", graph.File, 0, err)
		log.WithError(result.Err).Error("case failed before first step")
		return result, nil
	}

	frames := []*frameState{{exports: map[string]any{}}}
	stepNum := 0
	for _, node := range graph.Nodes {
		var stepResult *domain.StepResult
		switch node.Kind {
		case resolver.NodeStep:
			stepNum++
			stepResult = e.runStep(ctx, frames[len(frames)-1], node.Step, node.File, stepNum, log)
		case resolver.NodeEnter:
			fs, err := e.enterTemplate(ctx, node.Frame)
			if err != nil {
				stepNum++
				include := node.Frame.Include
				stepResult = &domain.StepResult{
					Index:  stepNum,
					Title:  include.Title,
					Action: include.Action,
					Status: domain.StatusFailed,
					Err:    e.runtimeError("include", node.File, stepNum, err),
				}
				break
			}
			log.WithField("template", node.Frame.File).Debug("template window opened")
			frames = append(frames, fs)
			continue
		case resolver.NodeExit:
			fs := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			ctx.PopFrame()
			log.WithField("template", node.Frame.File).Debug("template window closed")
			stepNum++
			stepResult = e.finishInclude(ctx, frames[len(frames)-1], fs.exports, node.Frame.Include, node.File, stepNum)
		}

		result.Steps = append(result.Steps, *stepResult)
		if stepResult.Status == domain.StatusFailed {
			result.Status = domain.StatusFailed
			result.Err = stepResult.Err
			log.WithError(stepResult.Err).WithField("step", stepResult.Index).Error("case failed")
			return result, nil
		}
		log.WithFields(logrus.Fields{"step": stepResult.Index, "action": stepResult.Action}).Debug("step passed")
	}

	result.Status = domain.StatusPassed
	log.Info("case passed")
	return result, nil
}

// bindCaseParams validates host-supplied parameter values against the case's
// declarations: undeclared names and type mismatches are rejected, required
// parameters must be present, defaults fill the rest.
func (e *Engine) bindCaseParams(graph *resolver.Graph, supplied map[string]any) (map[string]any, error) {
	const phase = "params"
	for name := range supplied {
		if _, ok := graph.Case.Param(name); !ok {
			return nil, domain.NewParseError(phase, graph.File, 0,
				fmt.Sprintf("case declares no parameter %q", name), nil)
		}
	}
	out := make(map[string]any, len(graph.Case.Params))
	for _, param := range graph.Case.Params {
		raw, ok := supplied[param.Name]
		if !ok {
			if param.Required() {
				return nil, domain.NewParseError(phase, graph.File, 0,
					fmt.Sprintf("case parameter %q is required", param.Name), nil)
			}
			out[param.Name] = wrapSecret(param, param.Default)
			continue
		}
		normalized, err := values.Normalize(raw)
		if err != nil {
			return nil, domain.NewParseError(phase, graph.File, 0,
				fmt.Sprintf("case parameter %q has an unsupported value", param.Name), err)
		}
		coerced, err := registry.CoerceValue(param.Type, normalized)
		if err != nil {
			return nil, domain.NewParseError(phase, graph.File, 0,
				fmt.Sprintf("case parameter %q: %v", param.Name, err), nil)
		}
		out[param.Name] = wrapSecret(param, coerced)
	}
	return out, nil
}

func wrapSecret(param domain.Param, value any) any {
	if param.Secret {
		if text, ok := value.(string); ok {
			return values.NewSecret(text)
		}
	}
	return value
}

// bindHeader seeds the current frame with a header's environment bindings,
// parameter values and vars, in that order. Vars are evaluated sequentially,
// so each may reference envs, params and earlier vars.
func (e *Engine) bindHeader(ctx *scope.Context, header *domain.Header, params map[string]any) error {
	for _, env := range header.Envs {
		value := e.getenv(env.EnvVar)
		if value == "" {
			return fmt.Errorf("environment variable %q is not set", env.EnvVar)
		}
		ctx.Set(env.Name, value)
	}
	for _, param := range header.Params {
		if value, ok := params[param.Name]; ok {
			ctx.Set(param.Name, value)
		}
	}
	for _, binding := range header.Vars {
		value, err := binding.Value.Eval(ctx)
		if err != nil {
			return fmt.Errorf("var %q: %w", binding.Name, err)
		}
		ctx.Set(binding.Name, value)
	}
	return nil
}

// enterTemplate evaluates the window's parameter bindings against the caller
// context, then opens the isolated frame and seeds it from the template
// header. On any failure the context is left on the caller frame.
func (e *Engine) enterTemplate(ctx *scope.Context, frame *resolver.Frame) (*frameState, error) {
	params := make(map[string]any, len(frame.Params))
	for _, binding := range frame.Params {
		value, err := binding.Value.Eval(ctx)
		if err != nil {
			return nil, fmt.Errorf("template parameter %q: %w", binding.Name, err)
		}
		decl, _ := frame.Template.Param(binding.Name)
		coerced, err := registry.CoerceValue(decl.Type, value)
		if err != nil {
			return nil, fmt.Errorf("template parameter %q: %w", binding.Name, err)
		}
		params[binding.Name] = wrapSecret(decl, coerced)
	}

	ctx.PushFrame()
	if err := e.bindHeader(ctx, frame.Template, params); err != nil {
		ctx.PopFrame()
		return nil, err
	}
	return &frameState{exports: map[string]any{}}, nil
}

// runStep executes one ordinary step: vars, action invocation, output
// binding, exports, expectations. The step's working layer is dropped when
// the step finishes, leaving only its exports behind.
func (e *Engine) runStep(ctx *scope.Context, fs *frameState, step *domain.Step, file string, num int, log *logrus.Entry) *domain.StepResult {
	res := &domain.StepResult{Index: num, Title: step.Title, Action: step.Action, Status: domain.StatusRunning}
	log.WithFields(logrus.Fields{"step": num, "action": step.Action}).Debug("step started")

	ctx.PushLayer()
	defer ctx.PopLayer()

	fail := func(phase string, err error) *domain.StepResult {
		res.Status = domain.StatusFailed
		res.Err = e.runtimeError(phase, file, num, err)
		return res
	}

	for _, binding := range step.Vars {
		value, err := binding.Value.Eval(ctx)
		if err != nil {
			return fail("vars", fmt.Errorf("var %q: %w", binding.Name, err))
		}
		ctx.Set(binding.Name, value)
	}

	action, ok := e.reg.Action(step.Action)
	if !ok {
		return fail("action", fmt.Errorf("action %q is not registered", step.Action))
	}
	args := make(map[string]any, len(step.Args))
	for _, binding := range step.Args {
		value, err := binding.Value.Eval(ctx)
		if err != nil {
			return fail("action", fmt.Errorf("field %q: %w", binding.Name, err))
		}
		args[binding.Name] = value
	}
	coerced, err := action.Schema.Coerce(args)
	if err != nil {
		return fail("action", err)
	}

	output, err := e.invoke(action, coerced)
	if err != nil {
		return fail("action", err)
	}
	normalized, err := values.Normalize(output)
	if err != nil {
		return fail("action", fmt.Errorf("action %q result: %w", step.Action, err))
	}
	ctx.Set(step.Output, normalized)

	if err := e.runExports(ctx, fs, step.Export); err != nil {
		return fail("export", err)
	}
	if failed := e.runChecks(ctx, res, step.Expect, file, num); failed {
		res.Status = domain.StatusFailed
		return res
	}

	res.Status = domain.StatusPassed
	return res
}

// finishInclude runs the include step's own surface after its template window
// closed: the collected exports land under the include's output variable in
// the caller context, then the include's export block and expectations run
// like any step's.
func (e *Engine) finishInclude(ctx *scope.Context, caller *frameState, exports map[string]any, step *domain.Step, file string, num int) *domain.StepResult {
	res := &domain.StepResult{Index: num, Title: step.Title, Action: step.Action, Status: domain.StatusRunning}

	ctx.PushLayer()
	defer ctx.PopLayer()
	ctx.Set(step.Output, exports)

	if err := e.runExports(ctx, caller, step.Export); err != nil {
		res.Status = domain.StatusFailed
		res.Err = e.runtimeError("export", file, num, err)
		return res
	}
	if failed := e.runChecks(ctx, res, step.Expect, file, num); failed {
		res.Status = domain.StatusFailed
		return res
	}

	res.Status = domain.StatusPassed
	return res
}

// runExports evaluates an export block in declaration order. Each value is
// bound in the frame's base layer as it is produced, so exports written
// before a failing one stay written.
func (e *Engine) runExports(ctx *scope.Context, fs *frameState, exports []domain.Binding) error {
	for _, binding := range exports {
		value, err := binding.Value.Eval(ctx)
		if err != nil {
			return fmt.Errorf("export %q: %w", binding.Name, err)
		}
		ctx.SetBase(binding.Name, value)
		fs.exports[binding.Name] = value
	}
	return nil
}

// runChecks evaluates a step's expectations in order and stops at the first
// failure. It reports whether the step failed.
func (e *Engine) runChecks(ctx *scope.Context, res *domain.StepResult, expects []domain.Expectation, file string, num int) bool {
	for i, exp := range expects {
		check := domain.CheckResult{Title: exp.Title, Operator: exp.Spelled}

		failCheck := func(err error) bool {
			res.Checks = append(res.Checks, check)
			res.Err = &domain.Error{
				Class:   domain.RuntimeError,
				Phase:   "expect",
				File:    file,
				Line:    exp.Line,
				Step:    num,
				Check:   i + 1,
				Message: "expectation could not be evaluated",
				Cause:   err,
			}
			return true
		}

		value, err := exp.Value.Eval(ctx)
		if err != nil {
			return failCheck(err)
		}
		operand, err := exp.Operand.Eval(ctx)
		if err != nil {
			return failCheck(err)
		}
		params := make(map[string]any, len(exp.Params))
		for _, binding := range exp.Params {
			paramValue, err := binding.Value.Eval(ctx)
			if err != nil {
				return failCheck(err)
			}
			params[binding.Name] = paramValue
		}
		coerced, err := exp.Operator.Params.Coerce(params)
		if err != nil {
			return failCheck(err)
		}

		passed, detail, err := exp.Operator.Apply(value, operand, coerced)
		if err != nil {
			return failCheck(err)
		}
		check.Passed = passed
		check.Detail = detail
		res.Checks = append(res.Checks, check)
		if !passed {
			res.Err = &domain.Error{
				Class:   domain.RuntimeError,
				Phase:   "expect",
				File:    file,
				Line:    exp.Line,
				Step:    num,
				Check:   i + 1,
				Message: "expectation failed: " + detail,
			}
			return true
		}
	}
	return false
}

// invoke calls an action with a panic guard: a panicking plugin fails its
// step, it never takes down the process.
func (e *Engine) invoke(action *registry.Action, args map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q panicked: %v", action.Name, r)
		}
	}()
	return action.Run(args)
}

// runtimeError classifies an execution failure, passing through errors that
// already carry position context.
func (e *Engine) runtimeError(phase, file string, num int, err error) *domain.Error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	return domain.NewRuntimeError(phase, file, num, "step execution failed", err)
}

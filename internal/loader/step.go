package loader

import (
	"gopkg.in/yaml.v3"

	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/expr"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

// reservedStepFields are the step fields owned by the core; everything else
// in a step document is an action-specific argument.
var reservedStepFields = map[string]bool{
	"spec":        true,
	"title":       true,
	"description": true,
	"action":      true,
	"vars":        true,
	"output":      true,
	"export":      true,
	"expect":      true,
}

// parseStep validates one step document, including its action's input schema
// and every expectation's operator.
func (l *Loader) parseStep(file string, node *yaml.Node, num int) (*domain.Step, error) {
	if spec := specOf(node); spec == string(domain.KindCase) || spec == string(domain.KindTemplate) {
		return nil, l.parseError(file, node, "header document must be at first position")
	}

	entries, err := l.mappingEntries(file, node)
	if err != nil {
		return nil, err
	}

	step := &domain.Step{Output: domain.DefaultOutput, Line: node.Line}
	var argNodes [][2]*yaml.Node

	for _, entry := range entries {
		key, value := entry[0], entry[1]
		switch key.Value {
		case "spec":
			spec, err := scalarString(file, l, value, "spec")
			if err != nil {
				return nil, err
			}
			if spec != string(domain.KindStep) {
				return nil, l.parseError(file, value, "unknown spec %q", spec)
			}
		case "title":
			if step.Title, err = scalarString(file, l, value, "title"); err != nil {
				return nil, err
			}
		case "description":
			if step.Description, err = scalarString(file, l, value, "description"); err != nil {
				return nil, err
			}
		case "action":
			action, err := scalarString(file, l, value, "action")
			if err != nil {
				return nil, err
			}
			if !registry.ValidActionName(action) {
				return nil, l.parseError(file, value, "invalid action identifier %q", action)
			}
			step.Action = action
		case "vars":
			if step.Vars, err = l.compileBindings(file, value, "vars"); err != nil {
				return nil, err
			}
		case "output":
			output, err := scalarString(file, l, value, "output")
			if err != nil {
				return nil, err
			}
			if !registry.ValidVariableName(output) {
				return nil, l.parseError(file, value, "invalid output variable name %q", output)
			}
			step.Output = output
		case "export":
			if step.Export, err = l.compileBindings(file, value, "export"); err != nil {
				return nil, err
			}
		case "expect":
			if step.Expect, err = l.parseExpectations(file, value); err != nil {
				return nil, err
			}
		default:
			argNodes = append(argNodes, entry)
		}
	}

	if step.Action == "" {
		return nil, l.parseError(file, node, "step %d does not declare an action", num)
	}

	schema, err := l.actionSchema(file, node, step.Action)
	if err != nil {
		return nil, err
	}
	if err := l.compileArgs(file, step, schema, argNodes); err != nil {
		return nil, err
	}
	if step.IsInclude() {
		if err := l.checkIncludeArgs(file, node, step); err != nil {
			return nil, err
		}
	}
	return step, nil
}

func (l *Loader) actionSchema(file string, node *yaml.Node, name string) (registry.Schema, error) {
	if name == domain.IncludeAction {
		return includeSchema, nil
	}
	action, ok := l.reg.Action(name)
	if !ok {
		return nil, l.parseError(file, node, "unknown action %q", name)
	}
	return action.Schema, nil
}

// compileArgs compiles action-specific fields and checks them against the
// action's schema: field names now, literal value types eagerly, deferred
// value types at evaluation time.
func (l *Loader) compileArgs(file string, step *domain.Step, schema registry.Schema, argNodes [][2]*yaml.Node) error {
	present := map[string]bool{}
	for _, entry := range argNodes {
		key, value := entry[0], entry[1]
		compiled, err := l.compiler.Compile(value)
		if err != nil {
			return l.wrapCompile(file, err)
		}
		present[key.Value] = true
		step.Args = append(step.Args, domain.Binding{Name: key.Value, Value: compiled})

		field, known := schema[key.Value]
		if !known {
			continue // CheckShape reports it with the full accepted list
		}
		if literal, ok := expr.LiteralValue(compiled); ok && literal != nil {
			if _, err := registry.CoerceValue(field.Type, literal); err != nil {
				return l.parseError(file, value, "action %q field %q: %v", step.Action, key.Value, err)
			}
		}
	}
	if err := schema.CheckShape(present); err != nil {
		return l.parseError(file, nil, "action %q: %v", step.Action, err)
	}
	return nil
}

// checkIncludeArgs enforces the static parts of the include contract: the
// template reference must be known at load time so resolution can happen
// before anything executes. The step's vars mapping doubles as the parameter
// transfer and is checked against the template's declarations during
// resolution.
func (l *Loader) checkIncludeArgs(file string, node *yaml.Node, step *domain.Step) error {
	fileArg, _ := step.Arg("file")
	literal, ok := expr.LiteralValue(fileArg)
	if !ok {
		return l.parseError(file, node, "include file must be a static string")
	}
	if _, ok := literal.(string); !ok {
		return l.parseError(file, node, "include file must be a static string")
	}
	return nil
}

// parseExpectations validates the expect block: each entry carries exactly
// one operator (resolved through the registry, aliases included), its
// operand, and optional operator parameters.
func (l *Loader) parseExpectations(file string, node *yaml.Node) ([]domain.Expectation, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, l.parseError(file, node, "expect must be a sequence")
	}
	var expectations []domain.Expectation
	for _, item := range node.Content {
		expectation, err := l.parseExpectation(file, item)
		if err != nil {
			return nil, err
		}
		expectations = append(expectations, expectation)
	}
	return expectations, nil
}

func (l *Loader) parseExpectation(file string, node *yaml.Node) (domain.Expectation, error) {
	entries, err := l.mappingEntries(file, node)
	if err != nil {
		return domain.Expectation{}, err
	}

	expectation := domain.Expectation{Line: node.Line}
	var extras [][2]*yaml.Node

	for _, entry := range entries {
		key, value := entry[0], entry[1]
		switch key.Value {
		case "title":
			if expectation.Title, err = scalarString(file, l, value, "title"); err != nil {
				return domain.Expectation{}, err
			}
		case "value":
			if expectation.Value, err = l.compiler.Compile(value); err != nil {
				return domain.Expectation{}, l.wrapCompile(file, err)
			}
		default:
			extras = append(extras, entry)
		}
	}
	if expectation.Value == nil {
		return domain.Expectation{}, l.parseError(file, node, "expectation requires a value")
	}

	// First pass: exactly one of the remaining keys must name an operator.
	for _, entry := range extras {
		key := entry[0]
		op, ok := l.reg.Operator(key.Value)
		if !ok {
			continue
		}
		if expectation.Operator != nil {
			return domain.Expectation{}, l.parseError(file, key,
				"expectation declares both %q and %q operators", expectation.Spelled, key.Value)
		}
		expectation.Operator = op
		expectation.Spelled = key.Value
		if expectation.Operand, err = l.compiler.Compile(entry[1]); err != nil {
			return domain.Expectation{}, l.wrapCompile(file, err)
		}
	}
	if expectation.Operator == nil {
		return domain.Expectation{}, l.parseError(file, node, "expectation declares no known operator")
	}

	// Second pass: everything else must be a parameter of that operator.
	for _, entry := range extras {
		key := entry[0]
		if key.Value == expectation.Spelled {
			continue
		}
		if _, isParam := expectation.Operator.Params[key.Value]; !isParam {
			return domain.Expectation{}, l.parseError(file, key,
				"unknown operator or parameter %q", key.Value)
		}
		param, err := l.compiler.Compile(entry[1])
		if err != nil {
			return domain.Expectation{}, l.wrapCompile(file, err)
		}
		expectation.Params = append(expectation.Params, domain.Binding{Name: key.Value, Value: param})
	}
	return expectation, nil
}

package builtins

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

func registerOperators(reg *registry.Registry) {
	partialParams := registry.Schema{
		"partial_match": {
			Type:        registry.TypeBool,
			Default:     false,
			Description: "Recursive subset matching instead of strict equality.",
		},
		"partialMatch": {
			Type:        registry.TypeBool,
			Default:     false,
			Description: "Alias of partial_match.",
		},
	}

	reg.RegisterOperator(&registry.Operator{
		Name:    "match",
		Aliases: []string{"eq", "equal"},
		Params:  partialParams,
		Apply: func(value, operand any, params map[string]any) (bool, string, error) {
			if matchValues(value, operand, partialMode(params)) {
				return true, "values match", nil
			}
			return false, mismatchDetail(operand, value), nil
		},
	})

	reg.RegisterOperator(&registry.Operator{
		Name:    "not_match",
		Aliases: []string{"notMatch", "ne", "notEqual"},
		Params:  partialParams,
		Apply: func(value, operand any, params map[string]any) (bool, string, error) {
			if matchValues(value, operand, partialMode(params)) {
				return false, fmt.Sprintf("did not expect %v", values.Mask(operand)), nil
			}
			return true, "values differ", nil
		},
	})

	reg.RegisterOperator(&registry.Operator{
		Name:    "less_than",
		Aliases: []string{"lt", "lessThan"},
		Apply:   orderedOperator("<", func(c int) bool { return c < 0 }),
	})
	reg.RegisterOperator(&registry.Operator{
		Name:    "less_than_or_equal",
		Aliases: []string{"lte", "lessThanOrEqual"},
		Apply:   orderedOperator("<=", func(c int) bool { return c <= 0 }),
	})
	reg.RegisterOperator(&registry.Operator{
		Name:    "greater_than",
		Aliases: []string{"gt", "greaterThan"},
		Apply:   orderedOperator(">", func(c int) bool { return c > 0 }),
	})
	reg.RegisterOperator(&registry.Operator{
		Name:    "greater_than_or_equal",
		Aliases: []string{"gte", "greaterThanOrEqual"},
		Apply:   orderedOperator(">=", func(c int) bool { return c >= 0 }),
	})

	reg.RegisterOperator(&registry.Operator{
		Name:    "regex",
		Aliases: []string{"reMatch", "regexMatch"},
		Params: registry.Schema{
			"ignore_case": {Type: registry.TypeBool, Default: false},
			"ignoreCase":  {Type: registry.TypeBool, Default: false},
			"multiline":   {Type: registry.TypeBool, Default: false},
		},
		Apply: applyRegex,
	})
}

func partialMode(params map[string]any) bool {
	return params["partial_match"] == true || params["partialMatch"] == true
}

func mismatchDetail(expected, actual any) string {
	return fmt.Sprintf("expected %v, got %v", values.Mask(expected), values.Mask(actual))
}

// matchValues compares two normalized values. Numbers compare numerically
// across int64/float64; secrets compare by their revealed value. In partial
// mode the expected value only has to be a recursive subset of the actual.
func matchValues(actual, expected any, partial bool) bool {
	if secret, ok := actual.(values.Secret); ok {
		actual = secret.Reveal()
	}
	if secret, ok := expected.(values.Secret); ok {
		expected = secret.Reveal()
	}
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if af, aok := asFloat(actual); aok {
		ef, eok := asFloat(expected)
		return eok && af == ef
	}
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		if !partial && len(act) != len(exp) {
			return false
		}
		for key, expItem := range exp {
			actItem, ok := act[key]
			if !ok || !matchValues(actItem, expItem, partial) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return false
		}
		if partial {
			// Each expected element must match at least one actual element.
			for _, expItem := range exp {
				found := false
				for _, actItem := range act {
					if matchValues(actItem, expItem, partial) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		}
		if len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValues(act[i], exp[i], partial) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(actual, expected)
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// orderedOperator builds an Apply func for the four ordered comparisons.
func orderedOperator(symbol string, accept func(int) bool) registry.OperatorFunc {
	return func(value, operand any, _ map[string]any) (bool, string, error) {
		cmp, err := compareOrdered(value, operand)
		if err != nil {
			return false, "", err
		}
		if accept(cmp) {
			return true, fmt.Sprintf("%v %s %v holds", values.Mask(value), symbol, values.Mask(operand)), nil
		}
		return false, fmt.Sprintf("expected %v %s %v", values.Mask(value), symbol, values.Mask(operand)), nil
	}
}

func compareOrdered(actual, operand any) (int, error) {
	if actual == nil || operand == nil {
		return 0, fmt.Errorf("cannot compare nil values")
	}
	if af, ok := asFloat(actual); ok {
		of, ok := asFloat(operand)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", actual, operand)
		}
		switch {
		case af < of:
			return -1, nil
		case af > of:
			return 1, nil
		default:
			return 0, nil
		}
	}
	as, aok := actual.(string)
	os, ook := operand.(string)
	if aok && ook {
		switch {
		case as < os:
			return -1, nil
		case as > os:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", actual, operand)
}

func applyRegex(value, operand any, params map[string]any) (bool, string, error) {
	pattern, ok := operand.(string)
	if !ok {
		return false, "", fmt.Errorf("regex pattern must be a string, got %T", operand)
	}
	text, ok := value.(string)
	if !ok {
		if secret, isSecret := value.(values.Secret); isSecret {
			text = secret.Reveal()
		} else {
			return false, "", fmt.Errorf("regex target must be a string, got %T", value)
		}
	}
	flags := ""
	if params["ignore_case"] == true || params["ignoreCase"] == true {
		flags += "i"
	}
	if params["multiline"] == true {
		flags += "m"
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, "", fmt.Errorf("invalid regex pattern: %w", err)
	}
	if re.MatchString(text) {
		return true, fmt.Sprintf("pattern %q matched", pattern), nil
	}
	return false, fmt.Sprintf("pattern %q did not match %q", pattern, text), nil
}

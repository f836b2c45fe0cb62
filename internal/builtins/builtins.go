// Package builtins populates a registry with the core's built-in actions,
// expectation operators and content decoders.
package builtins

import (
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

// Register adds every built-in extension to the registry. It must be called
// before the registry is frozen.
func Register(reg *registry.Registry) {
	registerActions(reg)
	registerOperators(reg)
	registerDecoders(reg)
}

func registerActions(reg *registry.Registry) {
	// empty is a logic-neutral placeholder: it accepts anything, does
	// nothing and returns no result. Useful for intermediate vars/export
	// steps and as a stand-in for future logic.
	reg.RegisterAction(&registry.Action{
		Name:        "empty",
		Description: "Placeholder action with no behavior and no result.",
		Schema:      registry.Schema{},
		Run: func(map[string]any) (any, error) {
			return nil, nil
		},
	})
}

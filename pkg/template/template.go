package template

import "github.com/kode4food/miniscript/pkg/api"

type (
	// Port is the capability the engine uses to render task values
	Port interface {
		// Render renders every placeholder in value, descending into lists
		// and mappings
		Render(value any, s Scope) (any, error)

		// EvalBool evaluates a condition expression
		EvalBool(expr string, s Scope) (bool, error)

		// EvalSequence evaluates a loop source to an ordered sequence
		EvalSequence(expr any, s Scope) ([]any, error)
	}

	// Scope exposes the variables visible at the point of evaluation
	Scope interface {
		Get(name string) (any, bool)
		Vars() api.Vars
	}

	// Environment evaluates single expressions of one language
	Environment interface {
		Evaluate(expr string, vars api.Vars) (any, error)
	}
)

// MapScope is a Scope over a fixed set of variables
type MapScope api.Vars

var _ Scope = MapScope(nil)

// Get returns the named variable
func (m MapScope) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Vars returns the variables themselves
func (m MapScope) Vars() api.Vars {
	return api.Vars(m)
}

package api

import (
	"maps"
	"slices"
)

type (
	// Vars is a set of named JSON-compatible values
	Vars map[string]any

	// Params holds the parameters handed to a task
	Params map[string]any
)

// SortedNames returns the variable names in lexical order
func (v Vars) SortedNames() []string {
	return slices.Sorted(maps.Keys(v))
}

// GetList retrieves a list parameter, returning nil if not found or wrong
// type
func (p Params) GetList(name string) []any {
	val, ok := p[name]
	if !ok {
		return nil
	}
	list, _ := val.([]any)
	return list
}

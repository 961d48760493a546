package engine

import (
	"maps"
	"slices"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/template"
)

type (
	// Context is the variable scope of a run. It is a view made of a chain
	// of read-only overlays wrapping one persistent script-level store.
	// Every view derived from a Context shares that store
	Context struct {
		store   *store
		overlay *overlay
	}

	store struct {
		values api.Vars
		names  []string
	}

	overlay struct {
		parent   *overlay
		bindings api.Vars
	}
)

var _ template.Scope = (*Context)(nil)

// NewContext creates a Context whose persistent store starts with a copy of
// the initial variables
func NewContext(initial api.Vars) *Context {
	st := &store{
		values: make(api.Vars, len(initial)),
		names:  make([]string, 0, len(initial)),
	}
	for _, name := range initial.SortedNames() {
		st.set(name, initial[name])
	}
	return &Context{store: st}
}

// Get looks a variable up in the overlays, innermost first, and then in
// the persistent store
func (c *Context) Get(name string) (any, bool) {
	for o := c.overlay; o != nil; o = o.parent {
		if v, ok := o.bindings[name]; ok {
			return v, true
		}
	}
	v, ok := c.store.values[name]
	return v, ok
}

// Set writes a variable to the persistent store, never to an overlay. The
// value stays visible for the remainder of the run
func (c *Context) Set(name string, value any) {
	c.store.set(name, value)
}

// WithOverlay returns a child view in which bindings shadow the variables
// of c. The overlay is dropped along with the returned view
func (c *Context) WithOverlay(bindings api.Vars) *Context {
	return &Context{
		store: c.store,
		overlay: &overlay{
			parent:   c.overlay,
			bindings: bindings,
		},
	}
}

// Vars flattens the view into a single set of variables, overlays
// shadowing the persistent store
func (c *Context) Vars() api.Vars {
	res := maps.Clone(c.store.values)
	if res == nil {
		res = api.Vars{}
	}
	var chain []*overlay
	for o := c.overlay; o != nil; o = o.parent {
		chain = append(chain, o)
	}
	for _, o := range slices.Backward(chain) {
		maps.Copy(res, o.bindings)
	}
	return res
}

// Snapshot returns a copy of the persistent store only
func (c *Context) Snapshot() api.Vars {
	res := maps.Clone(c.store.values)
	if res == nil {
		res = api.Vars{}
	}
	return res
}

// Names returns the persistent variable names in the order they were first
// set
func (c *Context) Names() []string {
	return slices.Clone(c.store.names)
}

func (s *store) set(name string, value any) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = value
}

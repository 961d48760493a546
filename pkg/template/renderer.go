package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/kode4food/miniscript/pkg/api"
)

// Renderer implements Port on top of a single language Environment
type Renderer struct {
	env Environment
}

var (
	ErrNotSequence  = errors.New("loop source is not a sequence")
	ErrRender       = errors.New("failed to render expression")
	ErrDuplicateKey = errors.New("mapping keys render to the same name")
	ErrMixedExpr    = errors.New(
		"expression must be bare or a single placeholder",
	)
)

var _ Port = (*Renderer)(nil)

// NewRenderer creates a Port that evaluates placeholders with env
func NewRenderer(env Environment) *Renderer {
	return &Renderer{env: env}
}

// Render renders strings, descending depth-first into lists and mappings.
// A string made of exactly one placeholder renders to the native value of
// its expression; any other string renders to a string
func (r *Renderer) Render(value any, s Scope) (any, error) {
	var vars api.Vars
	return r.render(value, s, &vars)
}

// EvalBool evaluates a condition. A condition is either a bare expression
// or exactly one placeholder; text mixed with placeholders is rejected
func (r *Renderer) EvalBool(expr string, s Scope) (bool, error) {
	res, err := r.evalExpr(expr, s)
	if err != nil {
		return false, err
	}
	return Truthy(res), nil
}

// EvalSequence evaluates a loop source. Literal lists are rendered element
// by element; strings are evaluated as a bare expression or a template
func (r *Renderer) EvalSequence(expr any, s Scope) ([]any, error) {
	var res any
	var err error
	switch e := expr.(type) {
	case string:
		res, err = r.evalExpr(e, s)
	default:
		res, err = r.Render(e, s)
	}
	if err != nil {
		return nil, err
	}

	switch seq := res.(type) {
	case []any:
		return seq, nil
	case map[string]any:
		// a table built inside a Lua expression has no list marker
		if len(seq) == 0 {
			return []any{}, nil
		}
	}
	return nil, fmt.Errorf("%w: got %T", ErrNotSequence, res)
}

func (r *Renderer) evalExpr(expr string, s Scope) (any, error) {
	if IsTemplate(expr) {
		p, err := parse(strings.TrimSpace(expr))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		single, ok := p.single()
		if !ok {
			return nil, fmt.Errorf("%w: %w %q", ErrRender, ErrMixedExpr, expr)
		}
		return r.eval(single, s.Vars())
	}
	res, err := r.env.Evaluate(strings.TrimSpace(expr), s.Vars())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrRender, expr, err)
	}
	return res, nil
}

func (r *Renderer) render(value any, s Scope, vars *api.Vars) (any, error) {
	switch v := value.(type) {
	case string:
		return r.renderString(v, s, vars)
	case []any:
		res := make([]any, len(v))
		for i, item := range v {
			out, err := r.render(item, s, vars)
			if err != nil {
				return nil, err
			}
			res[i] = out
		}
		return res, nil
	case map[string]any:
		return r.renderMap(v, s, vars)
	case api.Params:
		return r.renderMap(v, s, vars)
	case api.Vars:
		return r.renderMap(v, s, vars)
	default:
		return value, nil
	}
}

func (r *Renderer) renderMap(
	m map[string]any, s Scope, vars *api.Vars,
) (map[string]any, error) {
	res := make(map[string]any, len(m))
	for _, key := range slices.Sorted(maps.Keys(m)) {
		k, err := r.renderString(key, s, vars)
		if err != nil {
			return nil, err
		}
		name := Stringify(k)
		if _, ok := res[name]; ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrRender, ErrDuplicateKey,
				name)
		}
		out, err := r.render(m[key], s, vars)
		if err != nil {
			return nil, err
		}
		res[name] = out
	}
	return res, nil
}

func (r *Renderer) renderString(
	src string, s Scope, vars *api.Vars,
) (any, error) {
	if !IsTemplate(src) {
		return src, nil
	}
	p, err := parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	if *vars == nil {
		*vars = s.Vars()
	}

	if expr, ok := p.single(); ok {
		return r.eval(expr, *vars)
	}

	var buf strings.Builder
	for _, seg := range p {
		if !seg.isExpr {
			buf.WriteString(seg.text)
			continue
		}
		res, err := r.eval(seg.text, *vars)
		if err != nil {
			return nil, err
		}
		buf.WriteString(Stringify(res))
	}
	return buf.String(), nil
}

func (r *Renderer) eval(expr string, vars api.Vars) (any, error) {
	res, err := r.env.Evaluate(expr, vars)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrRender, expr, err)
	}
	return res, nil
}

// Truthy reports whether a rendered value counts as true in a condition.
// nil, false, zero numbers, empty strings, and empty collections are false
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// Stringify converts a rendered value to the text interpolated into a
// larger string. nil becomes empty; collections are written as JSON
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/kode4food/miniscript/pkg/api"
)

// JPathEnv evaluates gjson path expressions against the variables. It only
// looks values up, so it suits scripts that move data around rather than
// compute it
type JPathEnv struct{}

var (
	ErrJPathCompile = errors.New("jpath compile error")
	ErrJPathMarshal = errors.New("failed to marshal variables")
)

// NewJPathEnv creates a JSON path expression environment
func NewJPathEnv() *JPathEnv {
	return &JPathEnv{}
}

// Evaluate resolves the path against the JSON form of vars. A path that
// matches nothing evaluates to nil
func (e *JPathEnv) Evaluate(expr string, vars api.Vars) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty path", ErrJPathCompile)
	}

	doc, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJPathMarshal, err)
	}

	res := gjson.GetBytes(doc, expr)
	if !res.Exists() {
		return nil, nil
	}
	return normalizeJSON(res.Value()), nil
}

func normalizeJSON(value any) any {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= maxExactInt {
			return int(v)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeJSON(item)
		}
		return v
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeJSON(item)
		}
		return v
	default:
		return value
	}
}

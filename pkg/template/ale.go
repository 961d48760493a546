package template

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"

	"github.com/kode4food/miniscript/pkg/api"
)

// AleEnv evaluates Ale expressions. Each expression is compiled as a lambda
// over the visible variable names, so variables are referenced directly
type AleEnv struct {
	*compiler[data.Procedure]
	env *env.Environment
	mu  sync.Mutex
}

const (
	aleLambdaTemplate = "(lambda (%s) %s)"
	aleSymbolReserved = "()[]{}\"';`,~@#"
)

var (
	ErrAleNotProcedure = errors.New("not a procedure")
	ErrAleCompile      = errors.New("ale compile error")
	ErrAleCall         = errors.New("error calling procedure")
)

// NewAleEnv creates a new Ale expression environment
func NewAleEnv() *AleEnv {
	return NewAleEnvSized(DefaultCacheSize)
}

// NewAleEnvSized creates a new Ale expression environment whose compile
// cache holds size expressions
func NewAleEnvSized(size int) *AleEnv {
	e := env.NewEnvironment()
	bootstrap.Into(e)
	res := &AleEnv{env: e}
	res.compiler = newCompiler(size, res.compileExpr)
	return res
}

// Evaluate calls the compiled expression with the variables as arguments
func (e *AleEnv) Evaluate(expr string, vars api.Vars) (any, error) {
	names := aleArgNames(vars)
	proc, err := e.compile(expr, names)
	if err != nil {
		return nil, err
	}

	args := make(data.Vector, 0, len(names))
	for _, name := range names {
		args = append(args, toAle(vars[name]))
	}

	res, err := catchPanic(ErrAleCall,
		func() (ale.Value, error) {
			return proc.Call(args...), nil
		},
	)
	if err != nil {
		return nil, err
	}
	return fromAle(res), nil
}

func (e *AleEnv) compileExpr(
	expr string, argNames []string,
) (data.Procedure, error) {
	src := fmt.Sprintf(aleLambdaTemplate, strings.Join(argNames, " "), expr)

	e.mu.Lock()
	defer e.mu.Unlock()

	return catchPanic(ErrAleCompile,
		func() (data.Procedure, error) {
			ns := e.env.GetAnonymous()
			res, err := eval.String(ns, data.String(src))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAleCompile, err)
			}

			proc, ok := res.(data.Procedure)
			if !ok {
				return nil, fmt.Errorf("%w, got: %T", ErrAleNotProcedure, res)
			}
			return proc, nil
		},
	)
}

func aleArgNames(vars api.Vars) []string {
	res := make([]string, 0, len(vars))
	for _, name := range vars.SortedNames() {
		if isAleSymbol(name) {
			res = append(res, name)
		}
	}
	return res
}

func isAleSymbol(name string) bool {
	if name == "" || name[0] == ':' || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	return !strings.ContainsAny(name, aleSymbolReserved+" \t\r\n")
}

// toAle converts a decoded JSON value into Ale data. Mapping keys become
// keywords so expressions can read fields with (:name obj)
func toAle(value any) ale.Value {
	switch v := value.(type) {
	case nil:
		return data.Null
	case string:
		return data.String(v)
	case bool:
		return data.Bool(v)
	case int:
		return data.Integer(v)
	case int64:
		return data.Integer(v)
	case float64:
		return data.Float(v)
	case []any:
		vec := make(data.Vector, len(v))
		for i, elem := range v {
			vec[i] = toAle(elem)
		}
		return vec
	case api.Vars:
		return toAle(map[string]any(v))
	case api.Params:
		return toAle(map[string]any(v))
	case map[string]any:
		obj := data.NewObject()
		for _, k := range slices.Sorted(maps.Keys(v)) {
			pair := data.NewCons(data.Keyword(k), toAle(v[k]))
			obj = obj.Put(pair).(*data.Object)
		}
		return obj
	default:
		return data.String(fmt.Sprint(v))
	}
}

// fromAle converts an expression result back into a JSON value. Lists and
// vectors both become arrays; keywords lose their colon
func fromAle(value ale.Value) any {
	switch v := value.(type) {
	case data.Bool:
		return bool(v)
	case data.String:
		return string(v)
	case data.Keyword:
		return string(v)
	case data.Integer:
		return int(v)
	case data.Float:
		return float64(v)
	case data.Vector:
		res := make([]any, len(v))
		for i, elem := range v {
			res[i] = fromAle(elem)
		}
		return res
	case *data.List:
		res := []any{}
		for l := v; !l.IsEmpty(); {
			head, tail, ok := l.Split()
			if !ok {
				break
			}
			res = append(res, fromAle(head))
			l = tail.(*data.List)
		}
		return res
	case *data.Object:
		res := make(map[string]any, len(v.Pairs()))
		for _, pair := range v.Pairs() {
			res[fmt.Sprint(fromAle(pair.Car()))] = fromAle(pair.Cdr())
		}
		return res
	default:
		if value == data.Null {
			return nil
		}
		return fmt.Sprint(v)
	}
}

func catchPanic[T any](baseErr error, fn func() (T, error)) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		if ok {
			err = fmt.Errorf("%w: %w", baseErr, e)
			return
		}
		err = fmt.Errorf("%w: %v", baseErr, r)
	}()
	return fn()
}

package template

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/kode4food/miniscript/pkg/api"
)

type (
	// LuaEnv evaluates Lua expressions with interpreter state pooling
	LuaEnv struct {
		*compiler[*CompiledLua]
		statePool chan *lua.State
	}

	// CompiledLua represents a compiled Lua expression
	CompiledLua struct {
		bytecode []byte
	}
)

const (
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaGlobalTableName  = "_G"
	luaReturnTemplate   = "return %s"
	luaChunkName        = "expr"
	luaListMeta         = "miniscript.list"

	maxExactInt = 1 << 53
)

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewLuaEnv creates a new Lua expression environment
func NewLuaEnv() *LuaEnv {
	return NewLuaEnvSized(DefaultCacheSize)
}

// NewLuaEnvSized creates a new Lua expression environment whose compile
// cache holds size expressions
func NewLuaEnvSized(size int) *LuaEnv {
	luaEnv := &LuaEnv{
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
	luaEnv.compiler = newCompiler(size,
		func(expr string, _ []string) (*CompiledLua, error) {
			return luaEnv.compileExpr(expr)
		},
	)
	return luaEnv
}

// Evaluate runs a Lua expression with every variable bound as a global
func (e *LuaEnv) Evaluate(expr string, vars api.Vars) (any, error) {
	proc, err := e.compile(expr, nil)
	if err != nil {
		return nil, err
	}

	L := e.getState()
	clean := true
	defer func() {
		e.returnState(L, clean)
	}()

	names := make([]string, 0, len(vars))
	for name, value := range vars {
		L.Global(name)
		if !L.IsNil(-1) {
			clean = false
		}
		L.Pop(1)
		pushValue(L, value)
		L.SetGlobal(name)
		names = append(names, name)
	}
	defer clearGlobals(L, names)

	err = L.Load(bytes.NewReader(proc.bytecode), luaChunkName, "b")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}
	if err := L.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	res := luaToGo(L, -1)
	L.Pop(1)
	return res, nil
}

func (e *LuaEnv) compileExpr(expr string) (*CompiledLua, error) {
	L := lua.NewState()
	src := fmt.Sprintf(luaReturnTemplate, expr)
	if err := lua.LoadString(L, src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	return &CompiledLua{
		bytecode: buf.Bytes(),
	}, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	lua.NewMetaTable(L, luaListMeta)
	L.Pop(1)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		L := lua.NewState()
		e.setupSandbox(L)
		return L
	}
}

// returnState pools L unless an evaluation shadowed one of its globals
func (e *LuaEnv) returnState(L *lua.State, clean bool) {
	L.SetTop(0)
	if !clean {
		return
	}

	select {
	case e.statePool <- L:
	default:
	}
}

func clearGlobals(L *lua.State, names []string) {
	for _, name := range names {
		L.PushNil()
		L.SetGlobal(name)
	}
}

// pushValue pushes a decoded JSON value onto the stack. Lists become
// sequences indexed from 1 and mappings become tables keyed by string
func pushValue(L *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		L.PushNil()
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		L.CreateTable(len(v), 0)
		tbl := L.Top()
		for i, elem := range v {
			pushValue(L, elem)
			L.RawSetInt(tbl, i+1)
		}
		lua.SetMetaTableNamed(L, luaListMeta)
	case api.Vars:
		pushValue(L, map[string]any(v))
	case api.Params:
		pushValue(L, map[string]any(v))
	case map[string]any:
		L.CreateTable(0, len(v))
		tbl := L.Top()
		for k, elem := range v {
			pushValue(L, elem)
			L.SetField(tbl, k)
		}
	default:
		L.PushString(fmt.Sprint(v))
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == math.Trunc(num) && math.Abs(num) <= maxExactInt {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToAny(L *lua.State, index int) any {
	abs := L.AbsIndex(index)
	if length, ok := luaArrayLength(L, abs); ok {
		arr := make([]any, length)
		for i := 1; i <= length; i++ {
			L.RawGetInt(abs, i)
			arr[i-1] = luaToGo(L, -1)
			L.Pop(1)
		}
		return arr
	}
	if isLuaList(L, abs) && luaTableEmpty(L, abs) {
		return []any{}
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(abs) {
		var key string
		if L.TypeOf(-2) == lua.TypeString {
			key, _ = L.ToString(-2)
		} else {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
		}
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return result
}

// luaArrayLength reports whether the table at abs is a non-empty sequence
// with keys 1..n, and its length
func luaArrayLength(L *lua.State, abs int) (int, bool) {
	length := 0
	L.PushNil()
	for L.Next(abs) {
		L.Pop(1)
		if L.TypeOf(-1) != lua.TypeNumber {
			L.Pop(1)
			return 0, false
		}
		length++
	}
	if length == 0 {
		return 0, false
	}

	for i := 1; i <= length; i++ {
		L.RawGetInt(abs, i)
		missing := L.IsNil(-1)
		L.Pop(1)
		if missing {
			return 0, false
		}
	}
	return length, true
}

// isLuaList reports whether the table at abs was pushed from a Go list,
// which keeps an empty list from decoding as an empty mapping
func isLuaList(L *lua.State, abs int) bool {
	if !L.MetaTable(abs) {
		return false
	}
	lua.MetaTableNamed(L, luaListMeta)
	res := L.RawEqual(-1, -2)
	L.Pop(2)
	return res
}

func luaTableEmpty(L *lua.State, abs int) bool {
	L.PushNil()
	if !L.Next(abs) {
		return true
	}
	L.Pop(2)
	return false
}

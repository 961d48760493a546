package engine_test

import (
	"testing"

	as "github.com/kode4food/miniscript/internal/assert"
	"github.com/kode4food/miniscript/internal/assert/helpers"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/engine"
	"github.com/kode4food/miniscript/pkg/log"
)

func TestVarsTask(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		a := as.New(t)
		res, err := env.Execute(t, `
- vars:
    greeting: "hello {{ who }}"
    nested:
      list: ["{{ who }}", 2]
  register: set
`, api.Vars{"who": "world"})
		a.RunCompleted(res, err)
		a.Equal("hello world", res.Vars["greeting"])
		a.Equal(map[string]any{"list": []any{"world", 2}}, res.Vars["nested"])
		a.Equal(map[string]any{
			"greeting": "hello world",
			"nested":   map[string]any{"list": []any{"world", 2}},
		}, res.Vars["set"])
	})
}

func TestVarsTaskRequiresParams(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		res, err := env.Execute(t, "- vars: {}", nil)
		as.New(t).RunFailed(res, err, api.ErrInvalidTask)
	})
}

func TestLogTask(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		a := as.New(t)
		res, err := env.Execute(t, `
- log: "value is {{ x }}"
- log:
    debug: dbg-message
    warning: "{{ x * 2 }}"
`, api.Vars{"x": 21})
		a.RunCompleted(res, err)

		out := env.Logs.String()
		a.Contains(out, `"msg":"value is 21"`)
		a.Contains(out, `"msg":"dbg-message"`)
		a.Contains(out, `"level":"WARN","msg":"42"`)
	})
}

func TestLogTaskErrors(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		a := as.New(t)

		res, err := env.Execute(t, "- log: {}", nil)
		a.RunFailed(res, err, api.ErrInvalidTask)

		res, err = env.Execute(t, "- log: {fatal: x}", nil)
		a.RunFailed(res, err, api.ErrInvalidTask)
	})
}

func TestRegisterBuiltinsTwice(t *testing.T) {
	reg := engine.NewRegistry()
	a := as.New(t)
	a.NoError(engine.RegisterBuiltins(reg, log.Discard()))
	a.Equal([]string{engine.TaskLog, engine.TaskVars}, reg.Names())
	a.ErrorIs(engine.RegisterBuiltins(reg, log.Discard()), api.ErrInvalidTask)
}

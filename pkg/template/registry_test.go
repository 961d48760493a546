package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/template"
)

type constEnv struct {
	value any
}

func (e constEnv) Evaluate(string, api.Vars) (any, error) {
	return e.value, nil
}

func TestRegistryLanguages(t *testing.T) {
	reg := template.NewRegistry()
	assert.Equal(t,
		[]string{template.LangAle, template.LangJPath, template.LangLua},
		reg.Languages(),
	)

	for _, lang := range reg.Languages() {
		env, err := reg.Get(lang)
		assert.NoError(t, err)
		assert.NotNil(t, env)
	}
}

func TestRegistryPort(t *testing.T) {
	reg := template.NewRegistry()

	port, err := reg.Port("")
	assert.NoError(t, err)
	res, err := port.Render("{{ 1 + 2 }}", template.MapScope{})
	assert.NoError(t, err)
	assert.Equal(t, 3, res)

	port, err = reg.Port(template.LangJPath)
	assert.NoError(t, err)
	res, err = port.Render("{{ a.b }}", template.MapScope{
		"a": map[string]any{"b": "c"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "c", res)

	_, err = reg.Port("cobol")
	assert.ErrorIs(t, err, template.ErrUnsupportedLanguage)
}

func TestRegistryRegister(t *testing.T) {
	reg := template.NewRegistry()
	reg.Register("const", constEnv{value: "fixed"})

	assert.Contains(t, reg.Languages(), "const")
	port, err := reg.Port("const")
	assert.NoError(t, err)

	res, err := port.Render("{{ anything }}", template.MapScope{})
	assert.NoError(t, err)
	assert.Equal(t, "fixed", res)
}

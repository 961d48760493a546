package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/template"
)

func TestLuaEvaluate(t *testing.T) {
	env := template.NewLuaEnv()

	tests := []struct {
		name     string
		expr     string
		vars     api.Vars
		expected any
	}{
		{
			name:     "arithmetic",
			expr:     "a + b",
			vars:     api.Vars{"a": 5, "b": 10},
			expected: 15,
		},
		{
			name:     "fraction",
			expr:     "1 / 4",
			expected: 0.25,
		},
		{
			name:     "comparison",
			expr:     "x > 10",
			vars:     api.Vars{"x": 15},
			expected: true,
		},
		{
			name:     "concat",
			expr:     "name .. '!'",
			vars:     api.Vars{"name": "bob"},
			expected: "bob!",
		},
		{
			name: "field_access",
			expr: "result.sum",
			vars: api.Vars{
				"result": map[string]any{"sum": 6},
			},
			expected: 6,
		},
		{
			name:     "length",
			expr:     "#values",
			vars:     api.Vars{"values": []any{1, 2, 3}},
			expected: 3,
		},
		{
			name:     "undefined",
			expr:     "missing",
			expected: nil,
		},
		{
			name:     "array_table",
			expr:     "{1, 2, 3}",
			expected: []any{1, 2, 3},
		},
		{
			name:     "map_table",
			expr:     "{a = 1, b = 'two'}",
			expected: map[string]any{"a": 1, "b": "two"},
		},
		{
			name:     "empty_table",
			expr:     "{}",
			expected: map[string]any{},
		},
		{
			name:     "string_library",
			expr:     "string.upper(word)",
			vars:     api.Vars{"word": "loud"},
			expected: "LOUD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.Evaluate(tt.expr, tt.vars)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, res)
		})
	}
}

func TestLuaEvaluateErrors(t *testing.T) {
	env := template.NewLuaEnv()

	_, err := env.Evaluate("1 +", nil)
	assert.ErrorIs(t, err, template.ErrLuaLoad)

	_, err = env.Evaluate("missing.field", nil)
	assert.ErrorIs(t, err, template.ErrLuaExecution)

	_, err = env.Evaluate("os.exit(1)", nil)
	assert.ErrorIs(t, err, template.ErrLuaExecution)
}

func TestLuaVariablesDoNotLeak(t *testing.T) {
	env := template.NewLuaEnv()

	res, err := env.Evaluate("x", api.Vars{"x": 1})
	assert.NoError(t, err)
	assert.Equal(t, 1, res)

	res, err = env.Evaluate("x", nil)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestLuaShadowedLibrary(t *testing.T) {
	env := template.NewLuaEnv()

	res, err := env.Evaluate("string", api.Vars{"string": "shadow"})
	assert.NoError(t, err)
	assert.Equal(t, "shadow", res)

	res, err = env.Evaluate("string.upper('a')", nil)
	assert.NoError(t, err)
	assert.Equal(t, "A", res)
}

func TestLuaCachedExpression(t *testing.T) {
	env := template.NewLuaEnvSized(1)

	for i := range 3 {
		res, err := env.Evaluate("n * 2", api.Vars{"n": i})
		assert.NoError(t, err)
		assert.Equal(t, i*2, res)
	}

	res, err := env.Evaluate("n + 1", api.Vars{"n": 1})
	assert.NoError(t, err)
	assert.Equal(t, 2, res)
}

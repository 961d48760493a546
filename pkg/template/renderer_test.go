package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/template"
)

func TestRenderNativeValue(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{"values": []any{1, 2, 3}}

	res, err := r.Render("{{ values }}", s)
	assert.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, res)

	res, err = r.Render("{{ #values + 1 }}", s)
	assert.NoError(t, err)
	assert.Equal(t, 4, res)
}

func TestRenderInterpolation(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{
		"item":   -2,
		"name":   "bob",
		"nested": map[string]any{"a": 1},
	}

	tests := []struct {
		name     string
		src      any
		expected any
	}{
		{
			name:     "plain",
			src:      "no placeholders",
			expected: "no placeholders",
		},
		{
			name:     "mixed",
			src:      "{{ item }} must be positive",
			expected: "-2 must be positive",
		},
		{
			name:     "multiple",
			src:      "{{ name }}:{{ item * 2 }}",
			expected: "bob:-4",
		},
		{
			name:     "nil_interpolated",
			src:      "[{{ missing }}]",
			expected: "[]",
		},
		{
			name:     "collection_interpolated",
			src:      "got {{ nested }}",
			expected: `got {"a":1}`,
		},
		{
			name:     "escaped",
			src:      `\{{ name }}`,
			expected: "{{ name }}",
		},
		{
			name:     "non_string",
			src:      42,
			expected: 42,
		},
		{
			name: "nested",
			src: map[string]any{
				"{{ name }}": []any{"{{ item }}", true},
			},
			expected: map[string]any{
				"bob": []any{-2, true},
			},
		},
		{
			name:     "params",
			src:      api.Params{"msg": "hi {{ name }}"},
			expected: map[string]any{"msg": "hi bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Render(tt.src, s)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, res)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{}

	_, err := r.Render("{{ open", s)
	assert.ErrorIs(t, err, template.ErrUnterminated)

	_, err = r.Render("{{ }}", s)
	assert.ErrorIs(t, err, template.ErrEmptyExpr)

	_, err = r.Render("{{ missing.field }}", s)
	assert.ErrorIs(t, err, template.ErrRender)
	assert.ErrorIs(t, err, template.ErrLuaExecution)
}

func TestEvalBool(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{"x": 15, "empty": ""}

	tests := []struct {
		expr     string
		expected bool
	}{
		{"x > 10", true},
		{"x < 10", false},
		{"{{ x > 10 }}", true},
		{"missing", false},
		{"empty", false},
		{"x", true},
		{"0", false},
		{"'yes'", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res, err := r.EvalBool(tt.expr, s)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, res)
		})
	}
}

func TestEvalSequence(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{"values": []any{1, 2, 3}, "n": 5}

	res, err := r.EvalSequence("values", s)
	assert.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, res)

	res, err = r.EvalSequence("{{ values }}", s)
	assert.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, res)

	res, err = r.EvalSequence([]any{"{{ n }}", "b"}, s)
	assert.NoError(t, err)
	assert.Equal(t, []any{5, "b"}, res)

	res, err = r.EvalSequence([]any{}, s)
	assert.NoError(t, err)
	assert.Empty(t, res)

	_, err = r.EvalSequence("n", s)
	assert.ErrorIs(t, err, template.ErrNotSequence)
}

func TestTruthy(t *testing.T) {
	assert.False(t, template.Truthy(nil))
	assert.False(t, template.Truthy(false))
	assert.False(t, template.Truthy(0))
	assert.False(t, template.Truthy(0.0))
	assert.False(t, template.Truthy(""))
	assert.False(t, template.Truthy([]any{}))
	assert.False(t, template.Truthy(map[string]any{}))
	assert.True(t, template.Truthy(true))
	assert.True(t, template.Truthy(-1))
	assert.True(t, template.Truthy("x"))
	assert.True(t, template.Truthy([]any{nil}))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", template.Stringify(nil))
	assert.Equal(t, "true", template.Stringify(true))
	assert.Equal(t, "12", template.Stringify(12))
	assert.Equal(t, "1.5", template.Stringify(1.5))
	assert.Equal(t, "[1,2]", template.Stringify([]any{1, 2}))
}

func TestRenderEmptyList(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{
		"values": []any{},
		"nested": map[string]any{"items": []any{}, "attrs": map[string]any{}},
	}

	res, err := r.Render("{{ values }}", s)
	assert.NoError(t, err)
	assert.Equal(t, []any{}, res)

	res, err = r.Render("{{ nested }}", s)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{
		"items": []any{},
		"attrs": map[string]any{},
	}, res)

	res, err = r.Render("{{ values }}!", s)
	assert.NoError(t, err)
	assert.Equal(t, "[]!", res)
}

func TestRenderDuplicateKeys(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{"k": "a"}

	for range 20 {
		_, err := r.Render(map[string]any{
			"{{ k }}": "first",
			"a":       "second",
		}, s)
		assert.ErrorIs(t, err, template.ErrRender)
		assert.ErrorIs(t, err, template.ErrDuplicateKey)
	}

	res, err := r.Render(map[string]any{"{{ k }}": 1, "b": 2}, s)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, res)
}

func TestEvalBoolMixedText(t *testing.T) {
	r := template.NewRenderer(template.NewLuaEnv())
	s := template.MapScope{"x": 0, "y": false}

	_, err := r.EvalBool("x > 1 and {{ y }}", s)
	assert.ErrorIs(t, err, template.ErrRender)
	assert.ErrorIs(t, err, template.ErrMixedExpr)

	res, err := r.EvalBool("  {{ y }}  ", s)
	assert.NoError(t, err)
	assert.False(t, res)
}

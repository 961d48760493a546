package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/engine"
)

func TestContextGetSet(t *testing.T) {
	initial := api.Vars{"b": 2, "a": 1}
	c := engine.NewContext(initial)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("A")
	assert.False(t, ok)

	c.Set("c", 3)
	c.Set("a", 10)
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
	assert.Equal(t, api.Vars{"a": 10, "b": 2, "c": 3}, c.Snapshot())

	assert.Equal(t, api.Vars{"b": 2, "a": 1}, initial)
}

func TestContextOverlay(t *testing.T) {
	c := engine.NewContext(api.Vars{"item": "outer", "x": 1})

	inner := c.WithOverlay(api.Vars{"item": 1})
	v, _ := inner.Get("item")
	assert.Equal(t, 1, v)
	v, _ = inner.Get("x")
	assert.Equal(t, 1, v)

	deeper := inner.WithOverlay(api.Vars{"item": 2, "loop_index": 0})
	v, _ = deeper.Get("item")
	assert.Equal(t, 2, v)
	assert.Equal(t,
		api.Vars{"item": 2, "loop_index": 0, "x": 1},
		deeper.Vars(),
	)

	v, _ = c.Get("item")
	assert.Equal(t, "outer", v)
	_, ok := c.Get("loop_index")
	assert.False(t, ok)
}

func TestContextSetThroughOverlay(t *testing.T) {
	c := engine.NewContext(nil)
	inner := c.WithOverlay(api.Vars{"item": 1})

	inner.Set("result", 42)
	inner.Set("item", "persisted")

	v, _ := c.Get("result")
	assert.Equal(t, 42, v)

	v, _ = inner.Get("item")
	assert.Equal(t, 1, v)
	v, _ = c.Get("item")
	assert.Equal(t, "persisted", v)

	assert.Equal(t,
		api.Vars{"result": 42, "item": "persisted"},
		inner.Snapshot(),
	)
}

func TestContextEmpty(t *testing.T) {
	c := engine.NewContext(nil)
	assert.Equal(t, api.Vars{}, c.Vars())
	assert.Equal(t, api.Vars{}, c.Snapshot())
	assert.Empty(t, c.Names())
}

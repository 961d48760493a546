package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kode4food/miniscript/internal/config"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/engine"
	"github.com/kode4food/miniscript/pkg/log"
	"github.com/kode4food/miniscript/pkg/template"
)

type (
	// TestEngineEnv holds all the components needed for engine testing
	TestEngineEnv struct {
		Engine    *engine.Engine
		Tasks     *engine.Registry
		Templates *template.Registry
		Events    *Recorder
		Config    *config.Config
		Logs      *bytes.Buffer
		Touched   *Touches
	}

	// Recorder is an engine observer that keeps every event it sees
	Recorder struct {
		events []*api.Event
		mu     sync.Mutex
	}

	// Touches records the ids passed to the touch task, in call order
	Touches struct {
		ids []string
		mu  sync.Mutex
	}
)

const (
	TaskAdd   = "add"
	TaskTouch = "touch"
	TaskBoom  = "boom"
)

// ErrBoom is returned by the boom task
var ErrBoom = errors.New("boom")

// NewTestConfig creates a default configuration with debug logging enabled
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	return cfg
}

// NewTestEngine creates an engine using the default template language, with
// the built-in tasks and the test tasks add, touch and boom registered
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()
	return NewTestEngineWithLanguage(t, template.DefaultLanguage)
}

// NewTestEngineWithLanguage creates a test engine rendering through the
// named template language
func NewTestEngineWithLanguage(t *testing.T, lang string) *TestEngineEnv {
	t.Helper()

	cfg := NewTestConfig()
	cfg.Language = lang

	var logs bytes.Buffer
	logger := log.NewWithWriter(&logs, "miniscript", "test", "test",
		log.ParseLevel(cfg.LogLevel),
	)

	templates := template.NewRegistrySized(cfg.CompileCacheSize)
	port, err := templates.Port(lang)
	require.NoError(t, err)

	tasks := engine.NewRegistry()
	require.NoError(t, engine.RegisterBuiltins(tasks, logger))

	touched := &Touches{}
	require.NoError(t, RegisterTestTasks(tasks, touched))

	rec := &Recorder{}
	eng := engine.New(tasks, port,
		engine.WithLogger(logger),
		engine.WithObserver(rec),
	)

	return &TestEngineEnv{
		Engine:    eng,
		Tasks:     tasks,
		Templates: templates,
		Events:    rec,
		Config:    cfg,
		Logs:      &logs,
		Touched:   touched,
	}
}

// WithEngine creates a test engine and executes fn with it
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}

// WithTestEnv creates a test engine environment and executes fn with it
func WithTestEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	fn(NewTestEngine(t))
}

// Execute decodes a YAML script and runs it with vars
func (e *TestEngineEnv) Execute(
	t *testing.T, src string, vars api.Vars,
) (*api.RunResult, error) {
	t.Helper()
	return e.Engine.Execute(context.Background(), ParseYAML(t, src), vars)
}

// ParseYAML decodes a YAML document into generic values
func ParseYAML(t *testing.T, src string) any {
	t.Helper()
	var res any
	require.NoError(t, yaml.Unmarshal([]byte(src), &res))
	return res
}

// RegisterTestTasks registers the add, touch and boom tasks. add sums its
// values into {sum: n}, touch records its id, and boom always fails
func RegisterTestTasks(r *engine.Registry, touched *Touches) error {
	err := r.Register(TaskAdd,
		api.TaskSpec{
			Required:  []string{"values"},
			Singleton: "values",
		},
		func(_ context.Context, p api.Params, _ *engine.Context) (any, error) {
			return Sum(p.GetList("values"))
		},
	)
	if err != nil {
		return err
	}

	err = r.Register(TaskTouch,
		api.TaskSpec{
			Required:  []string{"id"},
			Singleton: "id",
		},
		func(_ context.Context, p api.Params, _ *engine.Context) (any, error) {
			id := template.Stringify(p["id"])
			touched.add(id)
			return id, nil
		},
	)
	if err != nil {
		return err
	}

	return r.Register(TaskBoom,
		api.TaskSpec{AllowEmpty: true},
		func(context.Context, api.Params, *engine.Context) (any, error) {
			return nil, ErrBoom
		},
	)
}

// Sum adds a list of numbers, returning {sum: total}
func Sum(values []any) (any, error) {
	var total float64
	allInts := true
	for _, v := range values {
		switch n := v.(type) {
		case int:
			total += float64(n)
		case float64:
			total += n
			allInts = false
		default:
			return nil, fmt.Errorf("not a number: %v", v)
		}
	}
	if allInts {
		return map[string]any{"sum": int(total)}, nil
	}
	return map[string]any{"sum": total}, nil
}

// Observe records the event
func (r *Recorder) Observe(ev *api.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *ev
	r.events = append(r.events, &cpy)
}

// Events returns every recorded event
func (r *Recorder) Events() []*api.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*api.Event(nil), r.events...)
}

// OfType returns the recorded events of the given type
func (r *Recorder) OfType(typ api.EventType) []*api.Event {
	var res []*api.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			res = append(res, ev)
		}
	}
	return res
}

// IDs returns the touched ids in call order
func (t *Touches) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ids...)
}

func (t *Touches) add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = append(t.ids, id)
}

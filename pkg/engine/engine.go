package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/log"
	"github.com/kode4food/miniscript/pkg/template"
)

type (
	// Engine runs scripts against a task registry using a template port
	// for every expression
	Engine struct {
		tasks     *Registry
		port      template.Port
		logger    *slog.Logger
		observers []Observer
		now       func() time.Time
	}

	// Option configures an Engine
	Option func(*Engine)

	// Observer receives the events of every run, in order. Observers are
	// called synchronously from the run
	Observer interface {
		Observe(*api.Event)
	}

	// ObserverFunc adapts a function to the Observer interface
	ObserverFunc func(*api.Event)
)

// New creates an engine that dispatches to tasks and renders through port
func New(tasks *Registry, port template.Port, opts ...Option) *Engine {
	e := &Engine{
		tasks:  tasks,
		port:   port,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithLogger sets the logger used for run diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver adds an observer of run events
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// NewRunID generates a unique run identifier
func NewRunID() api.RunID {
	return api.RunID(uuid.New().String())
}

// Tasks returns the engine's task registry
func (e *Engine) Tasks() *Registry {
	return e.tasks
}

// Parse statically validates a decoded script
func (e *Engine) Parse(source any) (*api.Script, error) {
	return Parse(source)
}

// Execute parses source and runs it with a fresh Context built from vars.
// Static errors are returned before anything runs, with a nil result
func (e *Engine) Execute(
	ctx context.Context, source any, vars api.Vars,
) (*api.RunResult, error) {
	script, err := e.Parse(source)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, script, vars)
}

// Run executes script with a fresh Context built from vars
func (e *Engine) Run(
	ctx context.Context, script *api.Script, vars api.Vars,
) (*api.RunResult, error) {
	return e.RunContext(ctx, NewRunID(), script, NewContext(vars))
}

// RunContext executes script against c under the given run ID. The result
// is returned even when the run fails, so the caller can see the variables
// as they were when the failure occurred
func (e *Engine) RunContext(
	ctx context.Context, id api.RunID, script *api.Script, c *Context,
) (*api.RunResult, error) {
	if script == nil || len(script.Tasks) == 0 {
		return nil, fmt.Errorf("%w: script has no tasks", api.ErrInvalidScript)
	}

	r := &run{
		Engine: e,
		ctx:    ctx,
		id:     id,
		logger: e.logger.With(log.RunID(id)),
	}
	r.logger.Debug("Run started", slog.Int("tasks", len(script.Tasks)))
	r.emit(&api.Event{Type: api.EventTypeRunStarted})

	out := r.sequence(script.Tasks, c)
	res := &api.RunResult{
		ID:   id,
		Vars: c.Snapshot(),
	}

	switch out.Status {
	case api.StatusFailed:
		res.Status = api.RunFailed
		r.logger.Error("Run failed", log.Error(out.Error))
		r.emit(&api.Event{
			Type:   api.EventTypeRunFailed,
			Status: out.Status,
			Error:  out.Error.Error(),
		})
		return res, out.Error
	case api.StatusReturned:
		res.Status = api.RunReturned
		res.Value = out.Value
		r.logger.Info("Run returned")
	default:
		res.Status = api.RunCompleted
		r.logger.Debug("Run completed")
	}

	r.emit(&api.Event{
		Type:   api.EventTypeRunCompleted,
		Status: out.Status,
		Value:  res.Value,
	})
	return res, nil
}

// Observe calls f(ev)
func (f ObserverFunc) Observe(ev *api.Event) {
	f(ev)
}

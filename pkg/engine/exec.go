package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/log"
	"github.com/kode4food/miniscript/pkg/template"
)

type run struct {
	*Engine
	ctx    context.Context
	logger *slog.Logger
	id     api.RunID
}

var (
	failSpec = api.TaskSpec{
		Required:  []string{api.ParamMessage},
		Singleton: api.ParamMessage,
	}

	returnSpec = api.TaskSpec{
		Optional:   map[string]any{api.ParamResult: nil},
		Singleton:  api.ParamResult,
		AllowEmpty: true,
	}
)

// sequence runs nodes in document order. A terminal outcome stops the
// sequence and is handed back unchanged. Otherwise the outcome carries the
// value of the last node that executed
func (r *run) sequence(nodes []*api.Node, c *Context) api.Outcome {
	var last any
	for _, n := range nodes {
		out := r.node(n, c)
		if out.IsTerminal() {
			return out
		}
		if out.Status == api.StatusExecuted {
			last = out.Value
		}
	}
	return api.Executed(last)
}

func (r *run) node(n *api.Node, c *Context) api.Outcome {
	var out api.Outcome
	if n.Loop != nil {
		out = r.loop(n, c)
	} else {
		out = r.iteration(n, c, 0)
	}
	if out.Status == api.StatusExecuted && n.Register != "" {
		c.Set(n.Register, out.Value)
	}
	return out
}

// loop runs the node once per element of its loop source, with item and
// loop_index bound in an overlay that lives only as long as the iteration.
// The collected value holds one entry per iteration, nil where the
// iteration was skipped. An empty loop executes and collects []; a loop
// whose iterations were all skipped is itself skipped and registers nothing
func (r *run) loop(n *api.Node, c *Context) api.Outcome {
	items, err := r.port.EvalSequence(n.Loop, c)
	if err != nil {
		if errors.Is(err, template.ErrNotSequence) {
			return r.failed(n, 0, taskError(api.ErrInvalidTask, n, err))
		}
		return r.failed(n, 0, taskError(api.ErrExecutionFailed, n, err))
	}

	values := make([]any, 0, len(items))
	executed := len(items) == 0
	for i, item := range items {
		scope := c.WithOverlay(api.Vars{
			api.LoopItem:  item,
			api.LoopIndex: i,
		})
		out := r.iteration(n, scope, i)
		switch out.Status {
		case api.StatusExecuted:
			executed = true
			values = append(values, out.Value)
		case api.StatusSkipped:
			values = append(values, nil)
		default:
			return out
		}
	}

	if !executed {
		return api.Skipped()
	}
	return api.Executed(values)
}

func (r *run) iteration(n *api.Node, c *Context, idx int) api.Outcome {
	if err := r.ctx.Err(); err != nil {
		return r.failed(n, idx,
			fmt.Errorf("%w: %w", api.ErrExecutionFailed, err),
		)
	}

	ok, err := r.when(n, c)
	if err != nil {
		return r.failed(n, idx, taskError(api.ErrExecutionFailed, n, err))
	}
	if !ok {
		r.logger.Debug("Task skipped", log.Task(n.DisplayName()))
		r.emitTask(api.EventTypeTaskFinished, n, idx, api.Skipped())
		return api.Skipped()
	}

	r.logger.Debug("Task started",
		log.Task(n.DisplayName()),
		log.Action(n.Action),
		log.Iteration(idx))
	r.emitTask(api.EventTypeTaskStarted, n, idx, api.Outcome{})

	var out api.Outcome
	if n.IsBlock() {
		out = r.sequence(n.Block, c)
	} else {
		out = r.action(n, c)
	}

	if out.Status == api.StatusReturned {
		r.logger.Debug("Task returned", log.Task(n.DisplayName()))
	}
	r.emitTask(api.EventTypeTaskFinished, n, idx, out)
	return out
}

func (r *run) when(n *api.Node, c *Context) (bool, error) {
	if n.Never {
		return false, nil
	}
	for _, cond := range n.When {
		ok, err := r.port.EvalBool(cond, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (r *run) action(n *api.Node, c *Context) api.Outcome {
	switch n.Action {
	case api.ActionFail:
		params, err := r.params(n, &failSpec, c)
		if err != nil {
			return api.Failed(err)
		}
		msg := template.Stringify(params[api.ParamMessage])
		return api.Failed(
			fmt.Errorf("%w: task %q: %s", api.ErrAborted, n.DisplayName(), msg),
		)

	case api.ActionReturn:
		params, err := r.params(n, &returnSpec, c)
		if err != nil {
			return api.Failed(err)
		}
		return api.Returned(params[api.ParamResult])
	}

	task, err := r.tasks.Resolve(n.Action)
	if err != nil {
		return api.Failed(err)
	}
	params, err := r.params(n, &task.Spec, c)
	if err != nil {
		return api.Failed(err)
	}

	res, err := task.Fn(r.ctx, params, c)
	if err != nil {
		if api.KindOf(err) == api.KindInternal {
			return api.Failed(taskError(api.ErrExecutionFailed, n, err))
		}
		return api.Failed(fmt.Errorf("task %q: %w", n.DisplayName(), err))
	}
	return api.Executed(res)
}

// params renders the node's raw parameters and binds them to spec. A
// mapping is taken as named parameters; any other value is handed to the
// singleton parameter
func (r *run) params(
	n *api.Node, spec *api.TaskSpec, c *Context,
) (api.Params, error) {
	var raw api.Params
	switch p := n.Params.(type) {
	case nil:
		raw = api.Params{}
	case map[string]any:
		out, err := r.port.Render(p, c)
		if err != nil {
			return nil, taskError(api.ErrExecutionFailed, n, err)
		}
		m, _ := out.(map[string]any)
		raw = api.Params(m)
	default:
		if spec.Singleton == "" {
			return nil, fmt.Errorf("%w: task %q requires named parameters",
				api.ErrInvalidTask, n.DisplayName())
		}
		out, err := r.port.Render(p, c)
		if err != nil {
			return nil, taskError(api.ErrExecutionFailed, n, err)
		}
		raw = api.Params{spec.Singleton: out}
	}
	return spec.Bind(n.Action, raw)
}

func (r *run) failed(n *api.Node, idx int, err error) api.Outcome {
	out := api.Failed(err)
	r.emitTask(api.EventTypeTaskFinished, n, idx, out)
	return out
}

func (r *run) emitTask(typ api.EventType, n *api.Node, idx int, out api.Outcome) {
	ev := &api.Event{
		Type:   typ,
		Task:   n.DisplayName(),
		Action: n.Action,
		Status: out.Status,
		Value:  out.Value,
		Index:  idx,
	}
	if out.Error != nil {
		ev.Error = out.Error.Error()
	}
	r.emit(ev)
}

func (r *run) emit(ev *api.Event) {
	if len(r.observers) == 0 {
		return
	}
	ev.RunID = r.id
	ev.Timestamp = r.now()
	for _, o := range r.observers {
		o.Observe(ev)
	}
}

func taskError(kind error, n *api.Node, err error) error {
	return fmt.Errorf("%w: task %q: %w", kind, n.DisplayName(), err)
}

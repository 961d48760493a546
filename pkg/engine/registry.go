package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kode4food/miniscript/pkg/api"
)

type (
	// TaskFunc performs a task with validated parameters. A returned error
	// fails the run
	TaskFunc func(ctx context.Context, params api.Params, c *Context) (any, error)

	// Task is a registered action
	Task struct {
		Fn   TaskFunc
		Name string
		Spec api.TaskSpec
	}

	// Registry maps action names to the tasks that implement them. It is
	// built before any run and only read while runs are in progress
	Registry struct {
		tasks map[string]*Task
		mu    sync.RWMutex
	}
)

// NewRegistry creates an empty task registry
func NewRegistry() *Registry {
	return &Registry{
		tasks: map[string]*Task{},
	}
}

// Register adds a task under name. Duplicate or reserved names, a missing
// function, and malformed specs are rejected with ErrInvalidTask
func (r *Registry) Register(name string, spec api.TaskSpec, fn TaskFunc) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: task name is empty", api.ErrInvalidTask)
	case api.IsControlKey(name) || api.IsEngineAction(name):
		return fmt.Errorf("%w: task name %q is reserved",
			api.ErrInvalidTask, name)
	case fn == nil:
		return fmt.Errorf("%w: task %q has no function",
			api.ErrInvalidTask, name)
	}
	if err := spec.Validate(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[name]; ok {
		return fmt.Errorf("%w: task %q is already registered",
			api.ErrInvalidTask, name)
	}
	r.tasks[name] = &Task{
		Name: name,
		Spec: spec,
		Fn:   fn,
	}
	return nil
}

// Resolve returns the task registered under name
func (r *Registry) Resolve(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tasks[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", api.ErrUnknownTask, name)
}

// Names returns the registered task names in lexical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tasks))
}

// Describe lists the registered tasks along with their parameter specs
func (r *Registry) Describe() []*api.TaskInfo {
	names := r.Names()
	res := make([]*api.TaskInfo, 0, len(names))
	for _, name := range names {
		t, err := r.Resolve(name)
		if err != nil {
			continue
		}
		spec := t.Spec
		res = append(res, &api.TaskInfo{Name: name, Spec: &spec})
	}
	return res
}

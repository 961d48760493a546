package engine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kode4food/miniscript/pkg/api"
)

// Parse statically validates a decoded script and builds its node tree. A
// script is either a list of task mappings or a mapping holding only that
// list under "tasks". Action selectors are resolved when a node runs, so an
// unregistered action inside a branch that never runs is not an error
func Parse(source any) (*api.Script, error) {
	raw, err := scriptTasks(source)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: script has no tasks", api.ErrInvalidScript)
	}

	nodes, err := parseNodes(raw, api.KeyTasks)
	if err != nil {
		return nil, err
	}
	return &api.Script{Tasks: nodes}, nil
}

func scriptTasks(source any) ([]any, error) {
	switch s := source.(type) {
	case []any:
		return s, nil
	case []map[string]any:
		res := make([]any, len(s))
		for i, m := range s {
			res[i] = m
		}
		return res, nil
	case map[string]any:
		for key := range s {
			if key != api.KeyTasks {
				return nil, fmt.Errorf("%w: unexpected top-level key %q",
					api.ErrInvalidScript, key)
			}
		}
		tasks, ok := s[api.KeyTasks].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a list of tasks",
				api.ErrInvalidScript, api.KeyTasks)
		}
		return tasks, nil
	case nil:
		return nil, fmt.Errorf("%w: script is empty", api.ErrInvalidScript)
	default:
		return nil, fmt.Errorf("%w: script must be a list of tasks, got %T",
			api.ErrInvalidScript, source)
	}
}

func parseNodes(raw []any, path string) ([]*api.Node, error) {
	res := make([]*api.Node, 0, len(raw))
	for i, item := range raw {
		n, err := parseNode(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

func parseNode(raw any, path string) (*api.Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: task must be a mapping, got %T",
			api.ErrInvalidTask, path, raw)
	}

	selector, err := nodeSelector(m, path)
	if err != nil {
		return nil, err
	}

	n := &api.Node{
		Action: selector,
		Loop:   m[api.KeyLoop],
	}
	if n.Name, err = optionalString(m, api.KeyName, path); err != nil {
		return nil, err
	}
	if n.Register, err = optionalString(m, api.KeyRegister, path); err != nil {
		return nil, err
	}
	if n.When, n.Never, err = parseWhen(m[api.KeyWhen], path); err != nil {
		return nil, err
	}
	if _, ok := m[api.KeyLoop]; ok {
		if err := checkLoop(n.Loop, path); err != nil {
			return nil, err
		}
	}

	if selector != api.ActionBlock {
		n.Kind = api.ActionNode
		n.Params = m[selector]
		return n, nil
	}

	children, ok := blockTasks(m[selector])
	if !ok {
		return nil, fmt.Errorf("%w: %s: block must hold a list of tasks",
			api.ErrInvalidTask, path)
	}
	n.Kind = api.BlockNode
	n.Block, err = parseNodes(children, path+"."+api.ActionBlock)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// blockTasks accepts a block's children given directly as a list or as a
// mapping whose only key is tasks
func blockTasks(raw any) ([]any, bool) {
	if m, ok := raw.(map[string]any); ok {
		if len(m) != 1 {
			return nil, false
		}
		raw = m[api.KeyTasks]
	}
	children, ok := raw.([]any)
	return children, ok && len(children) > 0
}

func nodeSelector(m map[string]any, path string) (string, error) {
	var found []string
	for _, key := range slices.Sorted(maps.Keys(m)) {
		if !api.IsControlKey(key) {
			found = append(found, key)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", fmt.Errorf("%w: %s: task has no action", api.ErrInvalidTask,
			path)
	default:
		return "", fmt.Errorf("%w: %s: task has more than one action: %v",
			api.ErrInvalidTask, path, found)
	}
}

func optionalString(m map[string]any, key, path string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s: %q must be a non-empty string",
			api.ErrInvalidTask, path, key)
	}
	return s, nil
}

// parseWhen returns the condition expressions of a node. Literal booleans
// are settled here: true adds no condition, false marks the node as never
// running
func parseWhen(raw any, path string) ([]string, bool, error) {
	switch w := raw.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []string{w}, false, nil
	case bool:
		return nil, !w, nil
	case []any:
		var res []string
		never := false
		for _, item := range w {
			switch c := item.(type) {
			case string:
				res = append(res, c)
			case bool:
				never = never || !c
			default:
				return nil, false, fmt.Errorf(
					"%w: %s: %q conditions must be strings",
					api.ErrInvalidTask, path, api.KeyWhen)
			}
		}
		return res, never, nil
	default:
		return nil, false, fmt.Errorf("%w: %s: %q must be a string or a list",
			api.ErrInvalidTask, path, api.KeyWhen)
	}
}

func checkLoop(raw any, path string) error {
	switch raw.(type) {
	case string, []any:
		return nil
	default:
		return fmt.Errorf("%w: %s: %q must be an expression or a list",
			api.ErrInvalidTask, path, api.KeyLoop)
	}
}

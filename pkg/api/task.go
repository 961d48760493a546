package api

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TaskSpec describes the parameters a registered task accepts
type TaskSpec struct {
	// Optional maps optional parameter names to their defaults. A nil
	// default leaves the parameter unset when absent
	Optional map[string]any `json:"optional,omitempty"`

	// Singleton names the parameter that receives the action value when it
	// is given directly rather than as a mapping
	Singleton string `json:"singleton,omitempty"`

	// Required lists the parameter names that must be present
	Required []string `json:"required,omitempty"`

	// FreeForm accepts parameters beyond the declared ones. Required
	// parameters are still required
	FreeForm bool `json:"free_form,omitempty"`

	// AllowEmpty accepts an invocation with no parameters at all
	AllowEmpty bool `json:"allow_empty,omitempty"`
}

// Validate checks that the spec itself is well formed
func (s *TaskSpec) Validate(name string) error {
	seen := make(map[string]bool, len(s.Required))
	for _, req := range s.Required {
		if req == "" {
			return fmt.Errorf("%w: empty required parameter for task %q",
				ErrInvalidTask, name)
		}
		if seen[req] {
			return fmt.Errorf("%w: parameter %q repeated for task %q",
				ErrInvalidTask, req, name)
		}
		seen[req] = true
		if _, ok := s.Optional[req]; ok {
			return fmt.Errorf(
				"%w: parameter %q is both required and optional for task %q",
				ErrInvalidTask, req, name,
			)
		}
	}

	if s.Singleton != "" && !s.FreeForm && !s.IsKnown(s.Singleton) {
		return fmt.Errorf(
			"%w: singleton parameter %q of task %q must be declared",
			ErrInvalidTask, s.Singleton, name,
		)
	}
	return nil
}

// IsKnown returns whether the parameter is declared as required or optional
func (s *TaskSpec) IsKnown(param string) bool {
	if _, ok := s.Optional[param]; ok {
		return true
	}
	return slices.Contains(s.Required, param)
}

// Bind matches rendered parameters against the spec and returns a fresh
// parameter set with optional defaults filled in
func (s *TaskSpec) Bind(name string, params Params) (Params, error) {
	if !s.FreeForm {
		var unknown []string
		for key := range params {
			if !s.IsKnown(key) {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			slices.Sort(unknown)
			return nil, fmt.Errorf(
				"%w: parameters %s are not recognized for task %q",
				ErrInvalidTask, strings.Join(unknown, ", "), name,
			)
		}
	}

	var missing []string
	for _, req := range s.Required {
		if _, ok := params[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: parameters %s are required for task %q",
			ErrInvalidTask, strings.Join(missing, ", "), name)
	}

	if len(params) == 0 && !s.AllowEmpty {
		return nil, fmt.Errorf("%w: task %q requires at least one of %s",
			ErrInvalidTask, name, strings.Join(s.paramNames(), ", "))
	}

	res := maps.Clone(params)
	if res == nil {
		res = Params{}
	}
	for key, def := range s.Optional {
		if _, ok := res[key]; !ok && def != nil {
			res[key] = def
		}
	}
	return res, nil
}

func (s *TaskSpec) paramNames() []string {
	res := slices.Clone(s.Required)
	for _, key := range slices.Sorted(maps.Keys(s.Optional)) {
		res = append(res, key)
	}
	return res
}

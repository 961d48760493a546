package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScript is raised when the top-level structure of a script is
	// malformed. Nothing runs when a script fails this check
	ErrInvalidScript = errors.New("invalid script")

	// ErrInvalidTask is raised for a bad task node shape, a bad task schema,
	// or parameters that do not match a task schema once rendered
	ErrInvalidTask = errors.New("invalid task")

	// ErrUnknownTask is raised when a task selector is not registered
	ErrUnknownTask = errors.New("unknown task")

	// ErrExecutionFailed is raised when a task, a template expression, or an
	// explicit fail stops the run
	ErrExecutionFailed = errors.New("execution failed")

	// ErrAborted is raised by the fail action
	ErrAborted = fmt.Errorf("%w: aborted", ErrExecutionFailed)
)

// ErrorKind identifies which branch of the error taxonomy an error belongs to
type ErrorKind string

const (
	KindInvalidScript   ErrorKind = "invalid_script"
	KindInvalidTask     ErrorKind = "invalid_task"
	KindUnknownTask     ErrorKind = "unknown_task"
	KindExecutionFailed ErrorKind = "execution_failed"
	KindInternal        ErrorKind = "internal"
)

// KindOf classifies an error returned by the engine
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidScript):
		return KindInvalidScript
	case errors.Is(err, ErrUnknownTask):
		return KindUnknownTask
	case errors.Is(err, ErrInvalidTask):
		return KindInvalidTask
	case errors.Is(err, ErrExecutionFailed):
		return KindExecutionFailed
	default:
		return KindInternal
	}
}

// Err returns the sentinel error for the kind, or nil for KindInternal and
// unrecognized kinds
func (k ErrorKind) Err() error {
	switch k {
	case KindInvalidScript:
		return ErrInvalidScript
	case KindInvalidTask:
		return ErrInvalidTask
	case KindUnknownTask:
		return ErrUnknownTask
	case KindExecutionFailed:
		return ErrExecutionFailed
	default:
		return nil
	}
}

package api

type (
	// Status is the terminal state of a single node evaluation
	Status string

	// Outcome is the result of evaluating one node. A returned outcome is
	// the early-termination signal and must be propagated by every caller
	// until it reaches the top of the run
	Outcome struct {
		Value  any
		Error  error
		Status Status
	}

	// RunStatus is the terminal state of a whole script run
	RunStatus string

	// RunResult is what a script run hands back to its caller. Vars reflects
	// every mutation made before the run ended, including failed runs
	RunResult struct {
		Value  any       `json:"value,omitempty"`
		Vars   Vars      `json:"vars"`
		ID     RunID     `json:"id"`
		Status RunStatus `json:"status"`
	}

	// RunID identifies a single script run
	RunID string
)

const (
	StatusExecuted Status = "executed"
	StatusSkipped  Status = "skipped"
	StatusReturned Status = "returned"
	StatusFailed   Status = "failed"

	RunCompleted RunStatus = "completed"
	RunReturned  RunStatus = "returned"
	RunFailed    RunStatus = "failed"
)

// Executed creates an outcome for a node that ran and produced value
func Executed(value any) Outcome {
	return Outcome{Status: StatusExecuted, Value: value}
}

// Skipped creates an outcome for a node whose condition was false
func Skipped() Outcome {
	return Outcome{Status: StatusSkipped}
}

// Returned creates the early-termination outcome carrying value
func Returned(value any) Outcome {
	return Outcome{Status: StatusReturned, Value: value}
}

// Failed creates an outcome for a node that raised err
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Error: err}
}

// IsTerminal returns whether the outcome stops the rest of the run
func (o Outcome) IsTerminal() bool {
	return o.Status == StatusReturned || o.Status == StatusFailed
}

// Returned reports whether the run ended through an explicit return
func (r *RunResult) Returned() bool {
	return r.Status == RunReturned
}

package api

import (
	"slices"
	"time"
)

type (
	// EventType identifies the kind of run event
	EventType string

	// Event describes progress of a script run. Observers receive one event
	// per node state change plus one for the start and end of the run
	Event struct {
		Timestamp time.Time `json:"timestamp"`
		Value     any       `json:"value,omitempty"`
		Type      EventType `json:"type"`
		RunID     RunID     `json:"run_id"`
		Task      string    `json:"task,omitempty"`
		Action    string    `json:"action,omitempty"`
		Status    Status    `json:"status,omitempty"`
		Error     string    `json:"error,omitempty"`
		Index     int       `json:"index,omitempty"`
	}

	// EventFilter selects which events a subscriber receives
	EventFilter func(*Event) bool
)

const (
	EventTypeRunStarted   EventType = "run_started"
	EventTypeRunCompleted EventType = "run_completed"
	EventTypeRunFailed    EventType = "run_failed"
	EventTypeTaskStarted  EventType = "task_started"
	EventTypeTaskFinished EventType = "task_finished"
)

// FilterRun returns a filter accepting only events of the given run
func FilterRun(id RunID) EventFilter {
	return func(ev *Event) bool {
		return ev.RunID == id
	}
}

// FilterTypes returns a filter accepting only the given event types
func FilterTypes(types ...EventType) EventFilter {
	return func(ev *Event) bool {
		return slices.Contains(types, ev.Type)
	}
}

// AndFilters returns a filter accepting events that pass every filter
func AndFilters(filters ...EventFilter) EventFilter {
	return func(ev *Event) bool {
		for _, f := range filters {
			if !f(ev) {
				return false
			}
		}
		return true
	}
}

// FilterAll accepts every event
func FilterAll(*Event) bool {
	return true
}

package api

type (
	// RunRequest asks the service to execute a script
	RunRequest struct {
		Script   any    `json:"script"`
		Vars     Vars   `json:"vars,omitempty"`
		ID       RunID  `json:"id,omitempty"`
		Language string `json:"language,omitempty"`
	}

	// CheckResponse reports the outcome of a static script check
	CheckResponse struct {
		Message string `json:"message"`
		Tasks   int    `json:"tasks"`
	}

	// TaskInfo describes a registered task
	TaskInfo struct {
		Spec *TaskSpec `json:"spec"`
		Name string    `json:"name"`
	}

	// TasksListResponse contains the registered task catalog
	TasksListResponse struct {
		Tasks []*TaskInfo `json:"tasks"`
		Count int         `json:"count"`
	}

	// LanguagesResponse lists the available template languages
	LanguagesResponse struct {
		Default   string   `json:"default"`
		Languages []string `json:"languages"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// ErrorResponse is returned for any failed request
	ErrorResponse struct {
		Vars   Vars      `json:"vars,omitempty"`
		Error  string    `json:"error"`
		Kind   ErrorKind `json:"kind,omitempty"`
		RunID  RunID     `json:"run_id,omitempty"`
		Status int       `json:"status"`
	}

	// SubscribeRequest narrows a WebSocket stream to a run, to a set of
	// event types, or both. An empty request receives everything
	SubscribeRequest struct {
		RunID      RunID       `json:"run_id,omitempty"`
		EventTypes []EventType `json:"event_types,omitempty"`
	}

	// SubscribedResponse acknowledges a SubscribeRequest. Events sent after
	// it honor the new subscription
	SubscribedResponse struct {
		Type       string      `json:"type"`
		RunID      RunID       `json:"run_id,omitempty"`
		EventTypes []EventType `json:"event_types,omitempty"`
	}
)

// MessageSubscribed is the type of a SubscribedResponse
const MessageSubscribed = "subscribed"

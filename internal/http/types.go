package http

import (
	"fmt"

	"github.com/fyrsmithlabs/governd/internal/intent"
	"github.com/fyrsmithlabs/governd/internal/task"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// IntentRequest is the wire form of a proposed intent.
type IntentRequest struct {
	AgentID   string          `json:"agent_id"`
	Role      string          `json:"role"`
	Action    intent.Action   `json:"action"`
	Effects   []intent.Effect `json:"effects,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
}

// toIntent validates the request and builds an Intent.
func (r *IntentRequest) toIntent() (*intent.Intent, error) {
	if r.AgentID == "" {
		return nil, fmt.Errorf("agent_id field is required")
	}
	if r.Role == "" {
		return nil, fmt.Errorf("role field is required")
	}
	if !r.Action.Type.Valid() {
		return nil, fmt.Errorf("unknown action type %q", r.Action.Type)
	}

	var opts []intent.Option
	if len(r.Effects) > 0 {
		opts = append(opts, intent.WithEffects(r.Effects...))
	}
	if r.Reasoning != "" {
		opts = append(opts, intent.WithReasoning(r.Reasoning))
	}
	if r.TaskID != "" {
		opts = append(opts, intent.WithTaskID(r.TaskID))
	}

	return intent.New(r.AgentID, intent.Role(r.Role), r.Action, opts...), nil
}

// VerdictResponse is the response body for POST /api/v1/intents/evaluate.
type VerdictResponse struct {
	IntentID string         `json:"intent_id"`
	Verdict  intent.Verdict `json:"verdict"`
}

// SubmitRequest is the request body for POST /api/v1/tasks.
type SubmitRequest struct {
	Intent      IntentRequest `json:"intent"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Priority    string        `json:"priority,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// SubmitResponse is the response body for POST /api/v1/tasks. Task is
// nil when the verdict rejected the intent.
type SubmitResponse struct {
	IntentID string         `json:"intent_id"`
	Verdict  intent.Verdict `json:"verdict"`
	Task     *task.Task     `json:"task,omitempty"`
}

// ListTasksResponse is the response body for GET /api/v1/tasks.
type ListTasksResponse struct {
	Tasks []*task.Task `json:"tasks"`
	Count int          `json:"count"`
}

// TransitionRequest is the request body for POST /api/v1/tasks/:id/transition.
type TransitionRequest struct {
	To string `json:"to"`
}

// TransitionError is the conflict body for an illegal transition.
type TransitionError struct {
	Error string `json:"error"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// RollbackRequest is the request body for POST /api/v1/tasks/:id/rollback.
type RollbackRequest struct {
	FromStep string `json:"from_step"`
}

// RollbackResponse is the response body for POST /api/v1/tasks/:id/rollback.
type RollbackResponse struct {
	TaskID   string `json:"task_id"`
	FromStep string `json:"from_step"`
	Aborted  bool   `json:"aborted,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MetricsResponse is the response body for GET /api/v1/metrics.
type MetricsResponse struct {
	Evaluated     int64 `json:"evaluated"`
	Denied        int64 `json:"denied"`
	HumanRequired int64 `json:"human_required"`
	Deferred      int64 `json:"deferred"`
	Modified      int64 `json:"modified"`
}

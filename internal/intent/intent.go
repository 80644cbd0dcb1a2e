package intent

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the function an agent performs in a workflow.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleArchitect    Role = "architect"
	RoleImplementer  Role = "implementer"
	RoleReviewer     Role = "reviewer"
	RoleHuman        Role = "human"
)

// Intent is an agent's immutable proposal to perform one action.
//
// Intents are created by agents, consumed exactly once by the decision
// engine, and never mutated afterward.
type Intent struct {
	// ID is a random (UUIDv4) identifier with no ordering guarantee.
	ID string `json:"id"`

	// AgentID identifies the proposing agent (random, UUIDv4).
	AgentID string `json:"agent_id"`

	// Role is the proposing agent's workflow role.
	Role Role `json:"role"`

	// Action is the single operation proposed.
	Action Action `json:"action"`

	// Effects are the action's declared impact scopes.
	Effects []Effect `json:"effects,omitempty"`

	// Reasoning is the agent's free-text justification.
	Reasoning string `json:"reasoning,omitempty"`

	// TaskID is the owning task, when the intent belongs to one.
	TaskID string `json:"task_id,omitempty"`

	// CreatedAt is when the intent was issued.
	CreatedAt time.Time `json:"created_at"`
}

// New creates an Intent with a fresh random ID and the current time.
func New(agentID string, role Role, action Action, opts ...Option) *Intent {
	in := &Intent{
		ID:        NewID(),
		AgentID:   agentID,
		Role:      role,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Option customizes an Intent at construction time.
type Option func(*Intent)

// WithEffects declares the action's claimed impact scopes.
func WithEffects(effects ...Effect) Option {
	return func(in *Intent) { in.Effects = effects }
}

// WithReasoning attaches the agent's justification.
func WithReasoning(reasoning string) Option {
	return func(in *Intent) { in.Reasoning = reasoning }
}

// WithTaskID links the intent to an owning task.
func WithTaskID(taskID string) Option {
	return func(in *Intent) { in.TaskID = taskID }
}

// NewID returns a random 128-bit identifier (UUIDv4) for intents and
// agents. These IDs carry no creation-time ordering.
func NewID() string {
	return uuid.New().String()
}

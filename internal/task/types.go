package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// StepStatus tracks one execution step's progress. It is advanced by the
// executor directly; step status is not table-validated in this core.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// StepMetrics captures structured measurements for one executed step.
type StepMetrics struct {
	Duration  time.Duration `json:"duration,omitempty"`
	TokenCost int64         `json:"token_cost,omitempty"`
	MemoryIDs []string      `json:"memory_ids,omitempty"`
}

// StepResult is the captured outcome of one executed step.
type StepResult struct {
	Success bool        `json:"success"`
	Output  string      `json:"output,omitempty"`
	Metrics StepMetrics `json:"metrics,omitempty"`
}

// ExecutionStep is one appended forward step of a task. The step list is
// append-only and ordered.
type ExecutionStep struct {
	ID     string        `json:"id"`
	Action intent.Action `json:"action"`
	Status StepStatus    `json:"status"`
	Result *StepResult   `json:"result,omitempty"`
}

// FileState records one affected file inside a snapshot.
type FileState struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Snapshot is a point-in-time rollback/audit reference for a task,
// independent of the saga mechanism.
type Snapshot struct {
	// ID is a time-ordered (UUIDv7) identifier.
	ID string `json:"id"`

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time `json:"captured_at"`

	// CommitRef is an optional version-control commit reference.
	CommitRef string `json:"commit_ref,omitempty"`

	// Files maps each affected path to its content hash and size.
	Files map[string]FileState `json:"files"`

	// StateBlob is an optional opaque serialized state payload.
	StateBlob []byte `json:"state_blob,omitempty"`

	// CreatorRole is the role that captured the snapshot.
	CreatorRole intent.Role `json:"creator_role"`
}

// WorkRecord is one entry of a task's work history.
type WorkRecord struct {
	// ID is a time-ordered (UUIDv7) identifier.
	ID string `json:"id"`

	// ActorRole is who did the work.
	ActorRole intent.Role `json:"actor_role"`

	// Summary describes what was done.
	Summary string `json:"summary"`

	// StartedAt and FinishedAt bound the work.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Priority orders tasks for scheduling.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Metadata carries bookkeeping that is not lifecycle state.
type Metadata struct {
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CreatorRole intent.Role  `json:"creator_role"`
	Priority    Priority     `json:"priority"`
	Tags        []string     `json:"tags,omitempty"`
	WorkRecords []WorkRecord `json:"work_records,omitempty"`
}

// NewID returns a time-ordered 128-bit identifier (UUIDv7) for tasks,
// snapshots and work records. Unlike intent/agent IDs these sort
// lexicographically by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

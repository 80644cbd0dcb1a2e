package task

import (
	"time"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// Task is the persisted, stateful unit of accepted work.
//
// State is mutated only through RequestTransition; the snapshot list only
// through CaptureSnapshot. Steps, snapshots and work records are
// append-only. Deletion is a storage-layer concern.
type Task struct {
	// ID is a time-ordered (UUIDv7) identifier.
	ID string `json:"id"`

	// Intent and Verdict preserve the originating decision for audit.
	// Both are nil for directly created tasks.
	Intent  *intent.Intent  `json:"intent,omitempty"`
	Verdict *intent.Verdict `json:"verdict,omitempty"`

	State       State  `json:"state"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// AllowedTransitions is always exactly the table-derived successor
	// set of State. RequestTransition keeps it current.
	AllowedTransitions []State `json:"allowed_transitions"`

	Steps     []ExecutionStep `json:"steps,omitempty"`
	Gate      *QualityGate    `json:"gate,omitempty"`
	Snapshots []Snapshot      `json:"snapshots,omitempty"`
	Metadata  Metadata        `json:"metadata"`
}

// New creates a task directly, without an originating intent. The task
// starts Pending with the table-derived legal set.
func New(title string, creator intent.Role, opts ...Option) *Task {
	now := time.Now().UTC()
	t := &Task{
		ID:                 NewID(),
		State:              StatePending,
		Title:              title,
		AllowedTransitions: StatePending.Successors(),
		Metadata: Metadata{
			CreatedAt:   now,
			UpdatedAt:   now,
			CreatorRole: creator,
			Priority:    PriorityMedium,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewFromIntent creates a task from an accepted intent and its verdict,
// keeping both for the audit trail.
func NewFromIntent(in *intent.Intent, v intent.Verdict, title string, opts ...Option) *Task {
	t := New(title, in.Role, opts...)
	t.Intent = in
	t.Verdict = &v
	return t
}

// Option customizes a task at construction time.
type Option func(*Task)

// WithDescription sets the long-form description.
func WithDescription(desc string) Option {
	return func(t *Task) { t.Description = desc }
}

// WithPriority overrides the default medium priority.
func WithPriority(p Priority) Option {
	return func(t *Task) { t.Metadata.Priority = p }
}

// WithTags labels the task.
func WithTags(tags ...string) Option {
	return func(t *Task) { t.Metadata.Tags = tags }
}

// WithGate attaches a quality gate.
func WithGate(g *QualityGate) Option {
	return func(t *Task) { t.Gate = g }
}

// RequestTransition moves the task to the requested state. It is the sole
// mutator of State: if to is outside the current legal set it returns
// *NotAllowedError and the task is left unchanged; otherwise it sets the
// state, recomputes the legal set from the table and stamps UpdatedAt.
func (t *Task) RequestTransition(to State) error {
	if !t.State.CanTransition(to) {
		return &NotAllowedError{From: t.State, To: to}
	}
	t.State = to
	t.AllowedTransitions = to.Successors()
	t.Metadata.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordStep appends a pending execution step for the given action and
// returns a pointer into the task's step list for the executor to advance.
func (t *Task) RecordStep(action intent.Action) *ExecutionStep {
	t.Steps = append(t.Steps, ExecutionStep{
		ID:     NewID(),
		Action: action,
		Status: StepPending,
	})
	t.Metadata.UpdatedAt = time.Now().UTC()
	return &t.Steps[len(t.Steps)-1]
}

// CaptureSnapshot appends a point-in-time snapshot and returns it.
func (t *Task) CaptureSnapshot(files map[string]FileState, creator intent.Role, opts ...SnapshotOption) Snapshot {
	snap := Snapshot{
		ID:          NewID(),
		CapturedAt:  time.Now().UTC(),
		Files:       files,
		CreatorRole: creator,
	}
	for _, opt := range opts {
		opt(&snap)
	}
	t.Snapshots = append(t.Snapshots, snap)
	t.Metadata.UpdatedAt = time.Now().UTC()
	return snap
}

// SnapshotOption customizes a captured snapshot.
type SnapshotOption func(*Snapshot)

// WithCommitRef attaches a version-control commit reference.
func WithCommitRef(ref string) SnapshotOption {
	return func(s *Snapshot) { s.CommitRef = ref }
}

// WithStateBlob attaches an opaque serialized state payload.
func WithStateBlob(blob []byte) SnapshotOption {
	return func(s *Snapshot) { s.StateBlob = blob }
}

// LatestSnapshot returns the most recent snapshot, or nil when none
// has been captured.
func (t *Task) LatestSnapshot() *Snapshot {
	if len(t.Snapshots) == 0 {
		return nil
	}
	return &t.Snapshots[len(t.Snapshots)-1]
}

// AddWorkRecord appends one work-history entry.
func (t *Task) AddWorkRecord(actor intent.Role, summary string, started, finished time.Time) WorkRecord {
	rec := WorkRecord{
		ID:         NewID(),
		ActorRole:  actor,
		Summary:    summary,
		StartedAt:  started,
		FinishedAt: finished,
	}
	t.Metadata.WorkRecords = append(t.Metadata.WorkRecords, rec)
	t.Metadata.UpdatedAt = time.Now().UTC()
	return rec
}

// Clone returns an independent deep copy of the task.
func (t *Task) Clone() *Task {
	clone := *t

	clone.AllowedTransitions = append([]State(nil), t.AllowedTransitions...)

	if t.Intent != nil {
		in := *t.Intent
		in.Effects = append([]intent.Effect(nil), t.Intent.Effects...)
		clone.Intent = &in
	}
	if t.Verdict != nil {
		v := *t.Verdict
		clone.Verdict = &v
	}

	clone.Steps = make([]ExecutionStep, len(t.Steps))
	for i, s := range t.Steps {
		clone.Steps[i] = s
		if s.Result != nil {
			r := *s.Result
			r.Metrics.MemoryIDs = append([]string(nil), s.Result.Metrics.MemoryIDs...)
			clone.Steps[i].Result = &r
		}
	}

	clone.Snapshots = make([]Snapshot, len(t.Snapshots))
	for i, s := range t.Snapshots {
		clone.Snapshots[i] = s
		if s.Files != nil {
			files := make(map[string]FileState, len(s.Files))
			for k, v := range s.Files {
				files[k] = v
			}
			clone.Snapshots[i].Files = files
		}
		clone.Snapshots[i].StateBlob = append([]byte(nil), s.StateBlob...)
	}

	if t.Gate != nil {
		g := *t.Gate
		g.Checks = append([]Check(nil), t.Gate.Checks...)
		clone.Gate = &g
	}

	clone.Metadata.Tags = append([]string(nil), t.Metadata.Tags...)
	clone.Metadata.WorkRecords = append([]WorkRecord(nil), t.Metadata.WorkRecords...)

	return &clone
}

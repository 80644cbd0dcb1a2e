package saga

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/governd/internal/intent"
	"github.com/fyrsmithlabs/governd/internal/task"
)

// UndoRunner applies one compensating action as a real side effect. It
// is supplied by the runtime layer; the plan never calls tool
// implementations directly. The runner is expected to enforce its own
// timeout per invocation.
type UndoRunner func(ctx context.Context, undo UndoAction) error

// Plan is one task's compensation ledger. It grows by append during
// forward execution and is read-only during rollback. A Plan is a plain
// value with no internal locking: single-writer access and
// no-rollback-during-execution are caller-enforced invariants.
type Plan struct {
	// ID is a time-ordered (UUIDv7) identifier.
	ID string `json:"id"`

	// TaskID is the owning task (1:1).
	TaskID string `json:"task_id"`

	// Steps is the ordered forward ledger.
	Steps []Step `json:"steps"`

	// Compensations lists only the steps that registered an undo, in
	// registration order.
	Compensations []Compensation `json:"compensations"`
}

// NewPlan creates an empty ledger for a task.
func NewPlan(taskID string) *Plan {
	return &Plan{
		ID:     task.NewID(),
		TaskID: taskID,
	}
}

// AddStep appends a pending step. A non-nil undo also registers a
// compensation; a nil undo makes the step a non-reversible checkpoint.
func (p *Plan) AddStep(stepID string, action intent.Action, undo *UndoAction) {
	p.Steps = append(p.Steps, Step{
		ID:     stepID,
		Action: action,
		Undo:   undo,
		Status: task.StepPending,
	})
	if undo != nil {
		p.Compensations = append(p.Compensations, Compensation{StepID: stepID, Undo: *undo})
	}
}

// MarkCompleted records that the executor finished the step's forward
// action. Marking is the only way a step's status advances; the plan
// never runs forward actions itself.
func (p *Plan) MarkCompleted(stepID string) error {
	return p.setStatus(stepID, task.StepCompleted)
}

// MarkFailed records that the step's forward action failed.
func (p *Plan) MarkFailed(stepID string) error {
	return p.setStatus(stepID, task.StepFailed)
}

func (p *Plan) setStatus(stepID string, status task.StepStatus) error {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			p.Steps[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("mark %s: %w", stepID, ErrStepNotFound)
}

// indexOf returns the position of stepID, or -1.
func (p *Plan) indexOf(stepID string) int {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}

// Rollback reverts effects up to and including fromStep by replaying
// undo actions newest-first.
//
// It locates fromStep (ErrStepNotFound if absent) and iterates the
// prefix ending there in strict reverse registration order. Only steps
// that are Completed and carry an undo action are compensated; all
// others are skipped. The first failing runner invocation aborts the
// entire rollback with *UndoFailedError: already-reverted steps stay
// reverted and earlier compensations are never attempted. Cancellation
// is honored between successive compensations.
func (p *Plan) Rollback(ctx context.Context, fromStep string, runner UndoRunner) error {
	idx := p.indexOf(fromStep)
	if idx < 0 {
		return fmt.Errorf("rollback from %s: %w", fromStep, ErrStepNotFound)
	}

	for i := idx; i >= 0; i-- {
		step := &p.Steps[i]
		if step.Status != task.StepCompleted || step.Undo == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return &UndoFailedError{StepID: step.ID, Err: err}
		}
		if err := runner(ctx, *step.Undo); err != nil {
			return &UndoFailedError{StepID: step.ID, Err: err}
		}
	}
	return nil
}

// Summarize reports ledger totals.
func (p *Plan) Summarize() Summary {
	s := Summary{
		TotalSteps:    len(p.Steps),
		RollbackCount: len(p.Compensations),
	}
	for i := range p.Steps {
		if p.Steps[i].Status == task.StepCompleted {
			s.CompletedSteps++
		}
	}
	return s
}

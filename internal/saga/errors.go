package saga

import (
	"errors"
	"fmt"
)

// ErrStepNotFound reports a rollback or mark call targeting a step that
// was never registered. This is a caller bug and fatal to the call.
var ErrStepNotFound = errors.New("saga step not found")

// UndoFailedError aborts a rollback at the first failing compensation.
// Already-reverted steps stay reverted; no further compensation is
// attempted. The task may be left in an inconsistent partial state and
// must be surfaced to an operator, not retried blindly.
type UndoFailedError struct {
	StepID string
	Err    error
}

func (e *UndoFailedError) Error() string {
	return fmt.Sprintf("undo for step %s failed, rollback aborted: %v", e.StepID, e.Err)
}

func (e *UndoFailedError) Unwrap() error { return e.Err }

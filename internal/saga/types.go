package saga

import (
	"github.com/fyrsmithlabs/governd/internal/intent"
	"github.com/fyrsmithlabs/governd/internal/task"
)

// UndoType identifies one of the closed set of compensating actions.
type UndoType string

const (
	// UndoDeleteFile removes a file created by the forward step.
	UndoDeleteFile UndoType = "delete_file"
	// UndoRestoreFile restores a file from a captured backup.
	UndoRestoreFile UndoType = "restore_file"
	// UndoRunCommand runs a shell-style compensation command.
	UndoRunCommand UndoType = "run_command"
	// UndoRevertCommit reverts a version-control commit.
	UndoRevertCommit UndoType = "revert_commit"
	// UndoRemoveDependency removes a dependency the step added.
	UndoRemoveDependency UndoType = "remove_dependency"
	// UndoCustom invokes a named handler with opaque parameters.
	UndoCustom UndoType = "custom"
)

// UndoAction is one compensating action. The Type tag selects the
// variant; only that variant's fields are populated.
type UndoAction struct {
	Type UndoType `json:"type"`

	// Path targets file-oriented undo actions; Backup is the backup
	// location for restore_file.
	Path   string `json:"path,omitempty"`
	Backup string `json:"backup,omitempty"`

	// Command and WorkingDir describe a run_command undo.
	Command    string `json:"command,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`

	// Commit is the reference to revert for revert_commit.
	Commit string `json:"commit,omitempty"`

	// Dependency names the dependency to remove.
	Dependency string `json:"dependency,omitempty"`

	// Handler and Params describe a custom undo.
	Handler string            `json:"handler,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

// Step is one ledger entry: the forward action taken and its optional
// compensation. A step without an undo action is a non-reversible
// checkpoint that rollback silently skips.
type Step struct {
	ID     string          `json:"id"`
	Action intent.Action   `json:"action"`
	Undo   *UndoAction     `json:"undo,omitempty"`
	Status task.StepStatus `json:"status"`
}

// Compensation is the registered undo for one step. The plan's
// compensation list contains only steps that registered an undo.
type Compensation struct {
	StepID string     `json:"step_id"`
	Undo   UndoAction `json:"undo"`
}

// Summary reports ledger totals. RollbackCount is the number of
// registered compensations, not the number executed by any particular
// rollback call.
type Summary struct {
	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`
	RollbackCount  int `json:"rollback_count"`
}

package intent

// ActionType identifies one of the closed set of proposable actions.
type ActionType string

const (
	// ActionEditFile modifies an existing file.
	ActionEditFile ActionType = "edit_file"
	// ActionCreateFile creates a new file.
	ActionCreateFile ActionType = "create_file"
	// ActionDeleteFile removes a file.
	ActionDeleteFile ActionType = "delete_file"
	// ActionRunCommand executes a shell-style command.
	ActionRunCommand ActionType = "run_command"
	// ActionReadMemory reads from the agent memory subsystem.
	ActionReadMemory ActionType = "read_memory"
	// ActionWriteMemory writes to the agent memory subsystem.
	ActionWriteMemory ActionType = "write_memory"
	// ActionTransitionTask requests a task state transition.
	ActionTransitionTask ActionType = "transition_task"
	// ActionRequestHumanInput asks a human operator for a decision.
	ActionRequestHumanInput ActionType = "request_human_input"
)

// AllActionTypes returns every member of the closed action set.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionEditFile,
		ActionCreateFile,
		ActionDeleteFile,
		ActionRunCommand,
		ActionReadMemory,
		ActionWriteMemory,
		ActionTransitionTask,
		ActionRequestHumanInput,
	}
}

// Valid reports whether t is a member of the closed action set.
func (t ActionType) Valid() bool {
	switch t {
	case ActionEditFile, ActionCreateFile, ActionDeleteFile, ActionRunCommand,
		ActionReadMemory, ActionWriteMemory, ActionTransitionTask, ActionRequestHumanInput:
		return true
	}
	return false
}

// Action is one concrete proposed operation. The Type tag selects the
// variant; only the fields relevant to that variant are populated.
type Action struct {
	Type ActionType `json:"type"`

	// Path is the target file for file-oriented actions.
	Path string `json:"path,omitempty"`

	// Content is the proposed file content for create/edit actions.
	Content string `json:"content,omitempty"`

	// Command and WorkingDir describe a run_command action.
	Command    string `json:"command,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`

	// MemoryKey addresses read_memory/write_memory actions.
	MemoryKey string `json:"memory_key,omitempty"`

	// TaskID and TargetState describe a transition_task action.
	TaskID      string `json:"task_id,omitempty"`
	TargetState string `json:"target_state,omitempty"`

	// Prompt is the question for a request_human_input action.
	Prompt string `json:"prompt,omitempty"`
}

// EffectScope categorizes the impact surface an action claims to touch.
type EffectScope string

const (
	EffectFile    EffectScope = "file"
	EffectProcess EffectScope = "process"
	EffectMemory  EffectScope = "memory"
	EffectNetwork EffectScope = "network"
	EffectTask    EffectScope = "task"
	EffectVCS     EffectScope = "vcs"
)

// Effect is one declared impact of a proposed action. Effects are the
// agent's claim about scope; validators may audit them against the action.
type Effect struct {
	Scope EffectScope `json:"scope"`

	// Target narrows the scope: a path for file effects, a host for
	// network effects, a memory key for memory effects.
	Target string `json:"target,omitempty"`

	// Destructive marks effects that cannot be undone without a backup.
	Destructive bool `json:"destructive,omitempty"`
}

package task

import "fmt"

// State is one of the closed set of task lifecycle states.
type State string

const (
	// StatePending is the initial state of every task.
	StatePending State = "pending"
	// StatePreparing gathers context before execution.
	StatePreparing State = "preparing"
	// StateInProgress is active execution.
	StateInProgress State = "in_progress"
	// StateAwaitingVerification is execution finished, gate pending.
	StateAwaitingVerification State = "awaiting_verification"
	// StateBlocked is execution paused on an external dependency.
	StateBlocked State = "blocked"
	// StateCompleted is terminal success.
	StateCompleted State = "completed"
	// StateFailed is terminal failure.
	StateFailed State = "failed"
	// StateCancelled is terminal cancellation.
	StateCancelled State = "cancelled"
)

// transitions is the closed transition table. Terminal states have no
// entry: their successor set is empty.
var transitions = map[State][]State{
	StatePending:              {StatePreparing},
	StatePreparing:            {StateInProgress},
	StateInProgress:           {StateAwaitingVerification, StateBlocked},
	StateAwaitingVerification: {StateCompleted, StateFailed, StateInProgress},
	StateBlocked:              {StateInProgress},
}

// Successors returns the table-derived legal next states for s. The
// returned slice is a copy; terminal states yield an empty slice.
func (s State) Successors() []State {
	next := transitions[s]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether to is in s's successor set.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing edges.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	switch s {
	case StatePending, StatePreparing, StateInProgress, StateAwaitingVerification,
		StateBlocked, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// NotAllowedError reports an illegal transition request. It is local and
// recoverable: the caller re-reads the legal set and retries or treats
// the rejection as final.
type NotAllowedError struct {
	From State
	To   State
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("transition from %s to %s is not allowed", e.From, e.To)
}

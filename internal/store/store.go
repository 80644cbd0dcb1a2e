// Package store persists tasks.
//
// The core defines no wire format of its own: stores serialize the task
// value shape faithfully (closed-set variants tagged by name) and round
// trip every field. Two implementations are provided, an in-memory store
// for tests and embedding, and a SQLite store for the daemon.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/governd/internal/task"
)

// ErrTaskNotFound reports a lookup for an unknown task ID.
var ErrTaskNotFound = errors.New("task not found")

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	// State restricts results to one lifecycle state.
	State task.State

	// Limit bounds the number of returned tasks. Zero means no bound.
	Limit int
}

// TaskStore is the persistence collaborator for task values. Stores
// return independent copies: mutating a returned task never affects the
// stored value until Save is called again.
type TaskStore interface {
	// Save persists the task, inserting or replacing by ID.
	Save(ctx context.Context, t *task.Task) error

	// Get returns the task with the given ID or ErrTaskNotFound.
	Get(ctx context.Context, id string) (*task.Task, error)

	// List returns tasks matching the filter, ordered by ID. Task IDs
	// are time-ordered, so this is creation order.
	List(ctx context.Context, filter ListFilter) ([]*task.Task, error)

	// Delete removes the task or returns ErrTaskNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases store resources.
	Close() error
}

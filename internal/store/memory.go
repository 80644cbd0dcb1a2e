package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/governd/internal/task"
)

// MemoryStore is an in-process TaskStore for tests and embedding.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*task.Task)}
}

// Save stores an independent copy of the task.
func (s *MemoryStore) Save(_ context.Context, t *task.Task) error {
	if t.ID == "" {
		return fmt.Errorf("save task: empty ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a copy of the stored task.
func (s *MemoryStore) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, ErrTaskNotFound)
	}
	return t.Clone(), nil
}

// List returns copies of matching tasks in ID (creation) order.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*task.Task
	for _, id := range ids {
		t := s.tasks[id]
		if filter.State != "" && t.State != filter.State {
			continue
		}
		out = append(out, t.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Delete removes the task.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("delete task %s: %w", id, ErrTaskNotFound)
	}
	delete(s.tasks, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/governd/internal/task"
)

// SQLiteStore persists tasks in a single SQLite table. The task value is
// stored as a JSON document so every field, including closed-set variant
// tags, round-trips without a schema migration per field; state and
// creation time are lifted into columns for filtering.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
`

// OpenSQLite opens (creating if needed) a SQLite task store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts or replaces the task row.
func (s *SQLiteStore) Save(ctx context.Context, t *task.Task) error {
	if t.ID == "" {
		return errors.New("save task: empty ID")
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, state, created_at, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state=excluded.state, payload=excluded.payload`,
		t.ID, string(t.State), t.Metadata.CreatedAt.UTC().UnixMilli(), string(payload))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// Get returns the task with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*task.Task, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM tasks WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeTask(payload)
}

// List returns matching tasks ordered by ID (creation order, since task
// IDs are time-ordered).
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*task.Task, error) {
	query := `SELECT payload FROM tasks`
	var args []any
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		t, err := decodeTask(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// Delete removes the task row.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrTaskNotFound)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeTask(payload string) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("decode task payload: %w", err)
	}
	return &t, nil
}

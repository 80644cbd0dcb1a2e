package undo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/governd/internal/saga"
)

func newRunner(t *testing.T, opts ...Option) (*LocalRunner, string) {
	t.Helper()
	root := t.TempDir()
	r, err := NewLocalRunner(root, opts...)
	require.NoError(t, err)
	return r, root
}

func TestApply_DeleteFile(t *testing.T) {
	r, root := newRunner(t)
	path := filepath.Join(root, "created.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := r.Apply(context.Background(), saga.UndoAction{Type: saga.UndoDeleteFile, Path: "created.txt"})

	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestApply_DeleteMissingFileIsIdempotent(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{Type: saga.UndoDeleteFile, Path: "never-existed.txt"})

	require.NoError(t, err)
}

func TestApply_DeleteOutsideRootRejected(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{Type: saga.UndoDeleteFile, Path: "../escape.txt"})

	require.ErrorIs(t, err, ErrPathOutsideRoot)
}

func TestApply_RestoreFile(t *testing.T) {
	r, root := newRunner(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml.bak"), []byte("original"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte("mangled"), 0o644))

	err := r.Apply(context.Background(), saga.UndoAction{
		Type:   saga.UndoRestoreFile,
		Path:   "config.yaml",
		Backup: "config.yaml.bak",
	})

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestApply_RestoreMissingBackupFails(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{
		Type:   saga.UndoRestoreFile,
		Path:   "config.yaml",
		Backup: "absent.bak",
	})

	require.Error(t, err)
}

func TestApply_RunCommand(t *testing.T) {
	r, root := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{
		Type:    saga.UndoRunCommand,
		Command: "touch undone.marker",
	})

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "undone.marker"))
}

func TestApply_RunCommandFailureSurfacesOutput(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{
		Type:    saga.UndoRunCommand,
		Command: "echo broken >&2; exit 3",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestApply_RevertCommitOutsideRepoFails(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{
		Type:   saga.UndoRevertCommit,
		Commit: "HEAD",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening repository")
}

func TestApply_CustomHandler(t *testing.T) {
	var got map[string]string
	r, _ := newRunner(t, WithHandler("drop-cache", func(_ context.Context, params map[string]string) error {
		got = params
		return nil
	}))

	err := r.Apply(context.Background(), saga.UndoAction{
		Type:    saga.UndoCustom,
		Handler: "drop-cache",
		Params:  map[string]string{"key": "sessions"},
	})

	require.NoError(t, err)
	assert.Equal(t, "sessions", got["key"])
}

func TestApply_UnknownCustomHandler(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{Type: saga.UndoCustom, Handler: "ghost"})

	require.ErrorIs(t, err, ErrUnknownHandler)
}

func TestApply_CustomHandlerErrorPropagates(t *testing.T) {
	boom := errors.New("cache unavailable")
	r, _ := newRunner(t, WithHandler("drop-cache", func(context.Context, map[string]string) error {
		return boom
	}))

	err := r.Apply(context.Background(), saga.UndoAction{Type: saga.UndoCustom, Handler: "drop-cache"})

	require.ErrorIs(t, err, boom)
}

func TestApply_UnknownType(t *testing.T) {
	r, _ := newRunner(t)

	err := r.Apply(context.Background(), saga.UndoAction{Type: "teleport"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown undo action type")
}

// Package undo turns compensating actions into real side effects.
//
// It is the runtime collaborator behind the saga engine's injected
// runner: the saga stays free of I/O while LocalRunner knows how to
// delete and restore files, run commands, revert commits and remove
// dependencies inside a confined workspace root.
package undo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/governd/internal/saga"
)

// ErrPathOutsideRoot rejects undo targets that escape the workspace.
var ErrPathOutsideRoot = errors.New("undo path escapes workspace root")

// ErrUnknownHandler rejects custom undo actions with no registered handler.
var ErrUnknownHandler = errors.New("no handler registered for custom undo")

// Handler applies one custom undo action.
type Handler func(ctx context.Context, params map[string]string) error

// LocalRunner applies undo actions against the local filesystem, shell
// and git repository under a single workspace root. Each invocation
// enforces its own timeout, as the saga contract expects.
type LocalRunner struct {
	root     string
	timeout  time.Duration
	dropDep  []string
	handlers map[string]Handler
	logger   *zap.Logger
}

// Option customizes a LocalRunner.
type Option func(*LocalRunner)

// WithTimeout bounds each undo invocation. Default is one minute.
func WithTimeout(d time.Duration) Option {
	return func(r *LocalRunner) { r.timeout = d }
}

// WithDropDependencyCommand overrides how remove_dependency is executed.
// The dependency name is appended as the final argument.
func WithDropDependencyCommand(argv ...string) Option {
	return func(r *LocalRunner) { r.dropDep = argv }
}

// WithHandler registers a named custom undo handler.
func WithHandler(name string, h Handler) Option {
	return func(r *LocalRunner) { r.handlers[name] = h }
}

// WithLogger attaches a logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *LocalRunner) { r.logger = logger }
}

// NewLocalRunner creates a runner confined to root.
func NewLocalRunner(root string, opts ...Option) (*LocalRunner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	r := &LocalRunner{
		root:     abs,
		timeout:  time.Minute,
		dropDep:  []string{"go", "mod", "edit", "-droprequire"},
		handlers: make(map[string]Handler),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Apply executes one undo action. It satisfies saga.UndoRunner.
func (r *LocalRunner) Apply(ctx context.Context, undo saga.UndoAction) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Debug("applying undo action",
		zap.String("type", string(undo.Type)),
		zap.String("path", undo.Path))

	switch undo.Type {
	case saga.UndoDeleteFile:
		return r.deleteFile(undo.Path)
	case saga.UndoRestoreFile:
		return r.restoreFile(undo.Path, undo.Backup)
	case saga.UndoRunCommand:
		return r.runCommand(ctx, undo.Command, undo.WorkingDir)
	case saga.UndoRevertCommit:
		return r.revertCommit(ctx, undo.Commit)
	case saga.UndoRemoveDependency:
		return r.removeDependency(ctx, undo.Dependency)
	case saga.UndoCustom:
		h, ok := r.handlers[undo.Handler]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownHandler, undo.Handler)
		}
		return h(ctx, undo.Params)
	default:
		return fmt.Errorf("unknown undo action type %q", undo.Type)
	}
}

// resolve confines a relative or absolute path to the workspace root.
func (r *LocalRunner) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, path)
	}
	clean := filepath.Clean(path)
	if clean != r.root && !strings.HasPrefix(clean, r.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRoot, path)
	}
	return clean, nil
}

// deleteFile removes the target. A missing file counts as success so a
// compensation that already ran stays idempotent.
func (r *LocalRunner) deleteFile(path string) error {
	target, err := r.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

func (r *LocalRunner) restoreFile(path, backup string) error {
	target, err := r.resolve(path)
	if err != nil {
		return err
	}
	source, err := r.resolve(backup)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("reading backup %s: %w", backup, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("restoring %s: %w", path, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("restoring %s: %w", path, err)
	}
	return nil
}

func (r *LocalRunner) runCommand(ctx context.Context, command, workingDir string) error {
	dir := r.root
	if workingDir != "" {
		resolved, err := r.resolve(workingDir)
		if err != nil {
			return err
		}
		dir = resolved
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("undo command %q: %w: %s", command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// revertCommit validates the commit against the repository with go-git,
// then shells out to git revert for the actual three-way merge.
func (r *LocalRunner) revertCommit(ctx context.Context, commit string) error {
	repo, err := git.PlainOpen(r.root)
	if err != nil {
		return fmt.Errorf("opening repository at %s: %w", r.root, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return fmt.Errorf("resolving commit %s: %w", commit, err)
	}
	if _, err := repo.CommitObject(*hash); err != nil {
		return fmt.Errorf("commit %s is not a commit object: %w", commit, err)
	}

	cmd := exec.CommandContext(ctx, "git", "revert", "--no-edit", hash.String())
	cmd.Dir = r.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("reverting commit %s: %w: %s", commit, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (r *LocalRunner) removeDependency(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("remove_dependency undo without a dependency name")
	}
	argv := append(append([]string(nil), r.dropDep...), name)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("removing dependency %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

package governor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/governd/internal/events"
	"github.com/fyrsmithlabs/governd/internal/intent"
	"github.com/fyrsmithlabs/governd/internal/policy"
	"github.com/fyrsmithlabs/governd/internal/saga"
	"github.com/fyrsmithlabs/governd/internal/store"
	"github.com/fyrsmithlabs/governd/internal/task"
)

// denyDeletes fails every delete_file action.
type denyDeletes struct{}

func (denyDeletes) Name() string  { return "deny-deletes" }
func (denyDeletes) Priority() int { return 10 }

func (denyDeletes) Validate(_ context.Context, in *intent.Intent, _ *policy.State) (policy.Result, error) {
	if in.Action.Type == intent.ActionDeleteFile {
		return policy.Fail("deletes are not allowed", intent.CodePathForbidden), nil
	}
	return policy.Pass(), nil
}

// recordingRunner records the step order of applied compensations.
type recordingRunner struct {
	applied []string
	failOn  string
}

func (r *recordingRunner) run(_ context.Context, undo saga.UndoAction) error {
	r.applied = append(r.applied, undo.Path)
	if r.failOn != "" && undo.Path == r.failOn {
		return errors.New("compensation exploded")
	}
	return nil
}

// capturingPublisher keeps published events in memory.
type capturingPublisher struct {
	events.NopPublisher
	verdicts    []events.VerdictEvent
	transitions []events.TransitionEvent
	rollbacks   []events.RollbackEvent
}

func (p *capturingPublisher) PublishVerdict(_ context.Context, ev events.VerdictEvent) error {
	p.verdicts = append(p.verdicts, ev)
	return nil
}

func (p *capturingPublisher) PublishTransition(_ context.Context, ev events.TransitionEvent) error {
	p.transitions = append(p.transitions, ev)
	return nil
}

func (p *capturingPublisher) PublishRollback(_ context.Context, ev events.RollbackEvent) error {
	p.rollbacks = append(p.rollbacks, ev)
	return nil
}

type fixture struct {
	svc    Service
	store  *store.MemoryStore
	runner *recordingRunner
	pub    *capturingPublisher
	state  *policy.State
}

func newFixture(t *testing.T, validators ...policy.Validator) *fixture {
	t.Helper()

	engine := policy.NewEngine(zap.NewNop())
	for _, v := range validators {
		engine.Register(v)
	}

	st := store.NewMemoryStore()
	runner := &recordingRunner{}
	pub := &capturingPublisher{}
	state := &policy.State{}

	svc, err := NewService(engine, state, st, runner.run, pub, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return &fixture{svc: svc, store: st, runner: runner, pub: pub, state: state}
}

func editIntent(path string) *intent.Intent {
	return intent.New("agent-1", intent.RoleImplementer, intent.Action{
		Type: intent.ActionEditFile,
		Path: path,
	})
}

func TestNewService_Validation(t *testing.T) {
	st := store.NewMemoryStore()
	engine := policy.NewEngine(zap.NewNop())

	_, err := NewService(nil, &policy.State{}, st, nil, nil, nil)
	assert.Error(t, err, "nil engine must be rejected")

	_, err = NewService(engine, nil, st, nil, nil, nil)
	assert.Error(t, err, "nil state must be rejected")

	_, err = NewService(engine, &policy.State{}, nil, nil, nil, nil)
	assert.Error(t, err, "nil store must be rejected")

	svc, err := NewService(engine, &policy.State{}, st, nil, nil, nil)
	require.NoError(t, err, "publisher and logger default when nil")
	assert.NoError(t, svc.Close())
}

func TestSubmit_AcceptedCreatesTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk, v, err := f.svc.Submit(ctx, editIntent("main.go"), "Fix bug")
	require.NoError(t, err)
	assert.Equal(t, intent.VerdictAllow, v.Kind)
	require.NotNil(t, tk)
	assert.Equal(t, task.StatePending, tk.State)
	assert.Equal(t, "Fix bug", tk.Title)

	stored, err := f.store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, stored.ID)

	summary, ok := f.svc.Plan(tk.ID)
	require.True(t, ok, "submit must open a saga ledger")
	assert.Zero(t, summary.TotalSteps)

	require.Len(t, f.pub.verdicts, 1)
	assert.Equal(t, intent.VerdictAllow, f.pub.verdicts[0].Kind)
}

func TestSubmit_DeniedReturnsVerdictOnly(t *testing.T) {
	f := newFixture(t, denyDeletes{})
	ctx := context.Background()

	in := intent.New("agent-1", intent.RoleImplementer, intent.Action{
		Type: intent.ActionDeleteFile,
		Path: "main.go",
	})

	tk, v, err := f.svc.Submit(ctx, in, "Delete main")
	require.NoError(t, err)
	assert.Nil(t, tk, "denied intents must not create tasks")
	assert.Equal(t, intent.VerdictDeny, v.Kind)
	assert.Equal(t, intent.CodePathForbidden, v.Code)

	tasks, err := f.store.List(ctx, store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.Equal(t, int64(1), f.svc.Metrics().Denied())
}

func TestEvaluate_ConsumesRateTokenOnAcceptance(t *testing.T) {
	f := newFixture(t, policy.RateLimitValidator{})
	f.state.Limiter = rate.NewLimiter(rate.Limit(0), 1)
	ctx := context.Background()

	v, err := f.svc.Evaluate(ctx, editIntent("a.go"))
	require.NoError(t, err)
	assert.Equal(t, intent.VerdictAllow, v.Kind)

	// The single token was consumed after acceptance; the next intent
	// is throttled.
	v, err = f.svc.Evaluate(ctx, editIntent("b.go"))
	require.NoError(t, err)
	assert.Equal(t, intent.VerdictDeny, v.Kind)
	assert.Equal(t, intent.CodeRateLimited, v.Code)
}

func TestTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk, _, err := f.svc.Submit(ctx, editIntent("main.go"), "Fix bug")
	require.NoError(t, err)

	updated, err := f.svc.Transition(ctx, tk.ID, task.StatePreparing)
	require.NoError(t, err)
	assert.Equal(t, task.StatePreparing, updated.State)

	// Preparing -> Completed is outside the table.
	_, err = f.svc.Transition(ctx, tk.ID, task.StateCompleted)
	var notAllowed *task.NotAllowedError
	require.ErrorAs(t, err, &notAllowed)
	assert.Equal(t, task.StatePreparing, notAllowed.From)
	assert.Equal(t, task.StateCompleted, notAllowed.To)

	// The failed request must not have been persisted.
	stored, err := f.store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatePreparing, stored.State)

	require.Len(t, f.pub.transitions, 1)
	assert.Equal(t, task.StatePending, f.pub.transitions[0].From)
	assert.Equal(t, task.StatePreparing, f.pub.transitions[0].To)
}

func TestTransition_UnknownTask(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), "missing", task.StatePreparing)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

// startTask submits an intent and walks the task to InProgress.
func startTask(t *testing.T, f *fixture) *task.Task {
	t.Helper()
	ctx := context.Background()

	tk, _, err := f.svc.Submit(ctx, editIntent("main.go"), "Fix bug")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, tk.ID, task.StatePreparing)
	require.NoError(t, err)
	tk, err = f.svc.Transition(ctx, tk.ID, task.StateInProgress)
	require.NoError(t, err)
	return tk
}

func TestExecuteStep_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := startTask(t, f)

	outcome, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
		TaskID: tk.ID,
		Intent: editIntent("src/lib.go"),
		Undo: &saga.UndoAction{
			Type:   saga.UndoRestoreFile,
			Path:   "src/lib.go",
			Backup: "src/lib.go.bak",
		},
		Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
			return &task.StepResult{Success: true, Output: "edited"}, nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Step)
	assert.Equal(t, task.StepCompleted, outcome.Step.Status)
	assert.Equal(t, "edited", outcome.Step.Result.Output)
	assert.False(t, outcome.RolledBack)

	stored, err := f.store.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, stored.Steps, 1)
	assert.Equal(t, task.StepCompleted, stored.Steps[0].Status)

	summary, ok := f.svc.Plan(tk.ID)
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalSteps)
	assert.Equal(t, 1, summary.CompletedSteps)
	assert.Equal(t, 1, summary.RollbackCount)
}

func TestExecuteStep_DeniedByPolicy(t *testing.T) {
	f := newFixture(t, denyDeletes{})
	ctx := context.Background()
	tk := startTask(t, f)

	outcome, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
		TaskID: tk.ID,
		Intent: intent.New("agent-1", intent.RoleImplementer, intent.Action{
			Type: intent.ActionDeleteFile,
			Path: "main.go",
		}),
		Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
			t.Fatal("executor must not run for a denied step")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, intent.VerdictDeny, outcome.Verdict.Kind)
	assert.Nil(t, outcome.Step, "no step is recorded for a denied intent")

	stored, err := f.store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Steps)
}

func TestExecuteStep_RequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk, _, err := f.svc.Submit(ctx, editIntent("main.go"), "Fix bug")
	require.NoError(t, err)

	_, err = f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
		TaskID: tk.ID,
		Intent: editIntent("main.go"),
		Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
			return nil, nil
		},
	})
	assert.ErrorIs(t, err, ErrTaskNotInProgress)
}

func TestExecuteStep_FailureRollsBackInReverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := startTask(t, f)

	// Three successful steps, each with a compensation.
	for _, path := range []string{"f0", "f1", "f2"} {
		p := path
		_, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
			TaskID: tk.ID,
			Intent: editIntent(p),
			Undo:   &saga.UndoAction{Type: saga.UndoDeleteFile, Path: p},
			Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
				return &task.StepResult{Success: true}, nil
			},
		})
		require.NoError(t, err)
	}

	// Fourth step fails.
	outcome, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
		TaskID: tk.ID,
		Intent: editIntent("f3"),
		Undo:   &saga.UndoAction{Type: saga.UndoDeleteFile, Path: "f3"},
		Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
			return nil, errors.New("compile error")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile error")
	require.NotNil(t, outcome)
	assert.Equal(t, task.StepFailed, outcome.Step.Status)
	assert.True(t, outcome.RolledBack)

	// Completed steps compensated newest-first; the failed step itself
	// is skipped.
	assert.Equal(t, []string{"f2", "f1", "f0"}, f.runner.applied)

	stored, err := f.store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StateBlocked, stored.State, "a failed step parks the task in Blocked")

	require.Len(t, f.pub.rollbacks, 1)
	assert.False(t, f.pub.rollbacks[0].Aborted)
}

func TestExecuteStep_RollbackAborts(t *testing.T) {
	f := newFixture(t)
	f.runner.failOn = "f1"
	ctx := context.Background()
	tk := startTask(t, f)

	for _, path := range []string{"f0", "f1", "f2"} {
		p := path
		_, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
			TaskID: tk.ID,
			Intent: editIntent(p),
			Undo:   &saga.UndoAction{Type: saga.UndoDeleteFile, Path: p},
			Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
				return &task.StepResult{Success: true}, nil
			},
		})
		require.NoError(t, err)
	}

	outcome, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
		TaskID: tk.ID,
		Intent: editIntent("f3"),
		Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
			return nil, errors.New("boom")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback aborted")
	assert.False(t, outcome.RolledBack)

	var undoErr *saga.UndoFailedError
	require.ErrorAs(t, err, &undoErr)

	// f2 compensated, f1 exploded, f0 never attempted.
	assert.Equal(t, []string{"f2", "f1"}, f.runner.applied)

	require.Len(t, f.pub.rollbacks, 1)
	assert.True(t, f.pub.rollbacks[0].Aborted)
}

func TestRollback_Manual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := startTask(t, f)

	var lastStep string
	for _, path := range []string{"f0", "f1"} {
		p := path
		outcome, err := f.svc.ExecuteStep(ctx, &ExecuteStepRequest{
			TaskID: tk.ID,
			Intent: editIntent(p),
			Undo:   &saga.UndoAction{Type: saga.UndoDeleteFile, Path: p},
			Execute: func(_ context.Context, _ intent.Action) (*task.StepResult, error) {
				return &task.StepResult{Success: true}, nil
			},
		})
		require.NoError(t, err)
		lastStep = outcome.Step.ID
	}

	require.NoError(t, f.svc.Rollback(ctx, tk.ID, lastStep))
	assert.Equal(t, []string{"f1", "f0"}, f.runner.applied)
}

func TestRollback_UnknownTask(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Rollback(context.Background(), "missing", "step")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestRollback_UnknownStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := startTask(t, f)

	err := f.svc.Rollback(ctx, tk.ID, "no-such-step")
	assert.ErrorIs(t, err, saga.ErrStepNotFound)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Close())

	_, err := f.svc.Evaluate(context.Background(), editIntent("a.go"))
	assert.Error(t, err)

	// Close is idempotent.
	assert.NoError(t, f.svc.Close())
}

package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// recordingRunner captures undo invocations in order and fails on
// configured step paths.
type recordingRunner struct {
	invoked []UndoAction
	failOn  map[string]error
}

func (r *recordingRunner) run(_ context.Context, undo UndoAction) error {
	r.invoked = append(r.invoked, undo)
	if err := r.failOn[undo.Path]; err != nil {
		return err
	}
	return nil
}

func createAction(path string) intent.Action {
	return intent.Action{Type: intent.ActionCreateFile, Path: path}
}

func TestAddStep_RegistersCompensations(t *testing.T) {
	plan := NewPlan("t1")

	for i := range 3 {
		path := fmt.Sprintf("f%d.go", i)
		plan.AddStep(fmt.Sprintf("s%d", i), createAction(path), UndoForCreate(path))
	}

	assert.Len(t, plan.Compensations, 3)
	assert.Equal(t, 3, plan.Summarize().RollbackCount)
	assert.Equal(t, 3, plan.Summarize().TotalSteps)
	assert.Equal(t, 0, plan.Summarize().CompletedSteps)
}

func TestAddStep_NilUndoIsCheckpointOnly(t *testing.T) {
	plan := NewPlan("t1")
	plan.AddStep("s1", createAction("a.go"), nil)

	assert.Len(t, plan.Steps, 1)
	assert.Empty(t, plan.Compensations)
	assert.Equal(t, 0, plan.Summarize().RollbackCount)
}

func TestMark_AdvancesStatus(t *testing.T) {
	plan := NewPlan("t1")
	plan.AddStep("s1", createAction("a.go"), UndoForCreate("a.go"))
	plan.AddStep("s2", createAction("b.go"), UndoForCreate("b.go"))

	require.NoError(t, plan.MarkCompleted("s1"))
	require.NoError(t, plan.MarkFailed("s2"))

	assert.Equal(t, 1, plan.Summarize().CompletedSteps)
	assert.ErrorIs(t, plan.MarkCompleted("missing"), ErrStepNotFound)
}

func TestRollback_SingleStepScenario(t *testing.T) {
	plan := NewPlan("t1")
	plan.AddStep("s1", createAction("a.rs"), UndoForCreate("a.rs"))
	require.NoError(t, plan.MarkCompleted("s1"))

	runner := &recordingRunner{}
	err := plan.Rollback(context.Background(), "s1", runner.run)

	require.NoError(t, err)
	require.Len(t, runner.invoked, 1, "delete must run exactly once")
	assert.Equal(t, UndoDeleteFile, runner.invoked[0].Type)
	assert.Equal(t, "a.rs", runner.invoked[0].Path)
}

func TestRollback_StrictReverseOrder(t *testing.T) {
	plan := NewPlan("t1")
	for i := range 4 {
		path := fmt.Sprintf("f%d", i)
		plan.AddStep(path, createAction(path), UndoForCreate(path))
		require.NoError(t, plan.MarkCompleted(path))
	}

	runner := &recordingRunner{}
	require.NoError(t, plan.Rollback(context.Background(), "f3", runner.run))

	var order []string
	for _, u := range runner.invoked {
		order = append(order, u.Path)
	}
	assert.Equal(t, []string{"f3", "f2", "f1", "f0"}, order)
}

func TestRollback_VisitsOnlyCompletedStepsWithUndo(t *testing.T) {
	plan := NewPlan("t1")

	plan.AddStep("completed", createAction("completed"), UndoForCreate("completed"))
	require.NoError(t, plan.MarkCompleted("completed"))

	plan.AddStep("checkpoint", createAction("checkpoint"), nil)
	require.NoError(t, plan.MarkCompleted("checkpoint"))

	plan.AddStep("pending", createAction("pending"), UndoForCreate("pending"))

	plan.AddStep("failed", createAction("failed"), UndoForCreate("failed"))
	require.NoError(t, plan.MarkFailed("failed"))

	plan.AddStep("last", createAction("last"), UndoForCreate("last"))
	require.NoError(t, plan.MarkCompleted("last"))

	runner := &recordingRunner{}
	require.NoError(t, plan.Rollback(context.Background(), "last", runner.run))

	var order []string
	for _, u := range runner.invoked {
		order = append(order, u.Path)
	}
	assert.Equal(t, []string{"last", "completed"}, order)
}

func TestRollback_PartialPrefix(t *testing.T) {
	plan := NewPlan("t1")
	for _, id := range []string{"s1", "s2", "s3"} {
		plan.AddStep(id, createAction(id), UndoForCreate(id))
		require.NoError(t, plan.MarkCompleted(id))
	}

	runner := &recordingRunner{}
	require.NoError(t, plan.Rollback(context.Background(), "s2", runner.run))

	var order []string
	for _, u := range runner.invoked {
		order = append(order, u.Path)
	}
	assert.Equal(t, []string{"s2", "s1"}, order, "steps after the target must stay untouched")
}

func TestRollback_UnknownStep(t *testing.T) {
	plan := NewPlan("t1")
	plan.AddStep("s1", createAction("a"), UndoForCreate("a"))

	runner := &recordingRunner{}
	err := plan.Rollback(context.Background(), "ghost", runner.run)

	require.ErrorIs(t, err, ErrStepNotFound)
}

func TestRollback_FirstFailureAbortsRemaining(t *testing.T) {
	plan := NewPlan("t1")
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		plan.AddStep(id, createAction(id), UndoForCreate(id))
		require.NoError(t, plan.MarkCompleted(id))
	}

	boom := errors.New("permission denied")
	runner := &recordingRunner{failOn: map[string]error{"s3": boom}}

	err := plan.Rollback(context.Background(), "s4", runner.run)

	var undoFailed *UndoFailedError
	require.ErrorAs(t, err, &undoFailed)
	assert.Equal(t, "s3", undoFailed.StepID)
	assert.ErrorIs(t, err, boom)

	// s4 reverted, s3 attempted and failed, s2 and s1 never touched.
	var order []string
	for _, u := range runner.invoked {
		order = append(order, u.Path)
	}
	assert.Equal(t, []string{"s4", "s3"}, order)
}

func TestRollback_HonorsCancellationBetweenCompensations(t *testing.T) {
	plan := NewPlan("t1")
	for _, id := range []string{"s1", "s2"} {
		plan.AddStep(id, createAction(id), UndoForCreate(id))
		require.NoError(t, plan.MarkCompleted(id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var invoked []string
	runner := func(_ context.Context, undo UndoAction) error {
		invoked = append(invoked, undo.Path)
		cancel()
		return nil
	}

	err := plan.Rollback(ctx, "s2", runner)

	var undoFailed *UndoFailedError
	require.ErrorAs(t, err, &undoFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"s2"}, invoked, "cancellation stops before the next compensation")
}

func TestSummarize_RollbackCountIsRegisteredNotExecuted(t *testing.T) {
	plan := NewPlan("t1")
	plan.AddStep("s1", createAction("s1"), UndoForCreate("s1"))
	plan.AddStep("s2", createAction("s2"), UndoForCreate("s2"))
	require.NoError(t, plan.MarkCompleted("s1"))

	runner := &recordingRunner{}
	require.NoError(t, plan.Rollback(context.Background(), "s2", runner.run))

	// Only one compensation executed, but both remain registered.
	assert.Len(t, runner.invoked, 1)
	assert.Equal(t, 2, plan.Summarize().RollbackCount)
}

func TestUndoHelpers(t *testing.T) {
	assert.Equal(t, &UndoAction{Type: UndoDeleteFile, Path: "a.go"}, UndoForCreate("a.go"))
	assert.Equal(t, &UndoAction{Type: UndoRestoreFile, Path: "a.go", Backup: "a.go.bak"},
		UndoForModify("a.go", "a.go.bak"))
	assert.Equal(t, &UndoAction{Type: UndoDeleteFile, Path: "a.go"}, UndoForModify("a.go", ""),
		"missing backup degrades to delete, valid only for files that did not pre-exist")
	assert.Equal(t, &UndoAction{Type: UndoRevertCommit, Commit: "abc123"}, UndoForCommit("abc123"))
	assert.Equal(t, &UndoAction{Type: UndoRemoveDependency, Dependency: "left-pad"}, UndoForDependency("left-pad"))

	custom := UndoCustomHandler("drop-table", map[string]string{"table": "tmp"})
	assert.Equal(t, UndoCustom, custom.Type)
	assert.Equal(t, "drop-table", custom.Handler)
}

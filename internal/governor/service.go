package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/governd/internal/events"
	"github.com/fyrsmithlabs/governd/internal/intent"
	"github.com/fyrsmithlabs/governd/internal/policy"
	"github.com/fyrsmithlabs/governd/internal/saga"
	"github.com/fyrsmithlabs/governd/internal/store"
	"github.com/fyrsmithlabs/governd/internal/task"
)

const instrumentationName = "github.com/fyrsmithlabs/governd/internal/governor"

// ErrNoUndoRunner reports a rollback attempt without a configured runner.
var ErrNoUndoRunner = errors.New("no undo runner configured")

// ErrTaskNotInProgress reports a step execution against a task that is
// not currently in progress.
var ErrTaskNotInProgress = errors.New("task is not in progress")

// StepExecutor performs the forward work of one step.
type StepExecutor func(ctx context.Context, action intent.Action) (*task.StepResult, error)

// ExecuteStepRequest describes one governed step execution.
type ExecuteStepRequest struct {
	// TaskID is the owning task. The task must be InProgress.
	TaskID string

	// Intent proposes the step's action and is evaluated before any
	// work happens.
	Intent *intent.Intent

	// Undo registers a compensation for the step. Nil marks the step
	// as a checkpoint that rollback skips over.
	Undo *saga.UndoAction

	// Execute performs the forward work once the verdict accepts.
	Execute StepExecutor
}

// StepOutcome is the result of one governed step execution.
type StepOutcome struct {
	// Verdict is the decision produced for the step's intent.
	Verdict intent.Verdict

	// Step is the appended execution step. Nil when the verdict
	// rejected the step before any work started.
	Step *task.ExecutionStep

	// RolledBack reports whether a failed step triggered compensation
	// of the task's earlier completed steps.
	RolledBack bool
}

// Service is the governance orchestration surface.
type Service interface {
	// Evaluate produces a verdict for the intent and advances the
	// decision counters and rate limiter.
	Evaluate(ctx context.Context, in *intent.Intent) (intent.Verdict, error)

	// Submit evaluates the intent and, when accepted, creates and
	// persists a task bound to it. The task is nil when rejected.
	Submit(ctx context.Context, in *intent.Intent, title string, opts ...task.Option) (*task.Task, intent.Verdict, error)

	// GetTask returns a task by ID.
	GetTask(ctx context.Context, id string) (*task.Task, error)

	// ListTasks returns tasks matching the filter.
	ListTasks(ctx context.Context, filter store.ListFilter) ([]*task.Task, error)

	// Transition requests a task state change and persists the result.
	Transition(ctx context.Context, taskID string, to task.State) (*task.Task, error)

	// ExecuteStep runs one governed step: the step's intent is
	// evaluated, the forward work runs, and the saga ledger is updated.
	// A failed step rolls back the task's earlier completed steps and
	// parks the task in Blocked.
	ExecuteStep(ctx context.Context, req *ExecuteStepRequest) (*StepOutcome, error)

	// Rollback compensates a task's completed steps from the named
	// step backward.
	Rollback(ctx context.Context, taskID, fromStep string) error

	// Plan returns the task's saga ledger summary.
	Plan(taskID string) (saga.Summary, bool)

	// Metrics exposes the accumulated decision counters.
	Metrics() *policy.Metrics

	// Close closes the service.
	Close() error
}

// service implements the Service interface.
type service struct {
	engine *policy.Engine
	state  *policy.State
	stats  *policy.Metrics
	tasks  store.TaskStore
	runner saga.UndoRunner
	events events.Publisher
	logger *zap.Logger

	// Telemetry
	tracer          trace.Tracer
	meter           metric.Meter
	verdictCounter  metric.Int64Counter
	taskCounter     metric.Int64Counter
	stepCounter     metric.Int64Counter
	rollbackCounter metric.Int64Counter

	mu     sync.Mutex
	plans  map[string]*saga.Plan
	closed bool
}

// NewService creates a governor service.
func NewService(engine *policy.Engine, state *policy.State, tasks store.TaskStore, runner saga.UndoRunner, pub events.Publisher, logger *zap.Logger) (Service, error) {
	if engine == nil {
		return nil, errors.New("policy engine is required")
	}
	if state == nil {
		return nil, errors.New("policy state is required")
	}
	if tasks == nil {
		return nil, errors.New("task store is required")
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		engine: engine,
		state:  state,
		stats:  &policy.Metrics{},
		tasks:  tasks,
		runner: runner,
		events: pub,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
		plans:  make(map[string]*saga.Plan),
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.verdictCounter, err = s.meter.Int64Counter(
		"governd.verdicts_total",
		metric.WithDescription("Total number of verdicts produced"),
		metric.WithUnit("{verdict}"),
	)
	if err != nil {
		s.logger.Warn("failed to create verdict counter", zap.Error(err))
	}

	s.taskCounter, err = s.meter.Int64Counter(
		"governd.tasks_created_total",
		metric.WithDescription("Total number of tasks created from accepted intents"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		s.logger.Warn("failed to create task counter", zap.Error(err))
	}

	s.stepCounter, err = s.meter.Int64Counter(
		"governd.steps_executed_total",
		metric.WithDescription("Total number of governed step executions"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		s.logger.Warn("failed to create step counter", zap.Error(err))
	}

	s.rollbackCounter, err = s.meter.Int64Counter(
		"governd.rollbacks_total",
		metric.WithDescription("Total number of compensating rollbacks"),
		metric.WithUnit("{rollback}"),
	)
	if err != nil {
		s.logger.Warn("failed to create rollback counter", zap.Error(err))
	}
}

// Evaluate produces a verdict for the intent. Counters and the rate
// limiter advance here, strictly after the verdict is computed, so the
// evaluation path itself stays pure.
func (s *service) Evaluate(ctx context.Context, in *intent.Intent) (intent.Verdict, error) {
	ctx, span := s.tracer.Start(ctx, "governor.evaluate")
	defer span.End()

	if in == nil {
		return intent.Verdict{}, errors.New("intent is required")
	}

	span.SetAttributes(
		attribute.String("intent_id", in.ID),
		attribute.String("agent_id", in.AgentID),
		attribute.String("role", string(in.Role)),
		attribute.String("action_type", string(in.Action.Type)),
	)

	if err := s.checkClosed(); err != nil {
		return intent.Verdict{}, err
	}

	v, err := s.engine.Evaluate(ctx, in, s.state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return intent.Verdict{}, err
	}

	s.recordVerdict(ctx, in, v)
	span.SetAttributes(attribute.String("verdict", string(v.Kind)))

	return v, nil
}

// recordVerdict advances counters, consumes a rate token on acceptance
// and publishes the verdict event.
func (s *service) recordVerdict(ctx context.Context, in *intent.Intent, v intent.Verdict) {
	s.stats.RecordVerdict(v.Kind)
	if v.Accepted() && s.state.Limiter != nil {
		s.state.Limiter.Allow()
	}

	if s.verdictCounter != nil {
		s.verdictCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(v.Kind)),
		))
	}

	ev := events.VerdictEvent{
		IntentID: in.ID,
		AgentID:  in.AgentID,
		Kind:     v.Kind,
		Reason:   v.Reason,
		Code:     v.Code,
		At:       time.Now().UTC(),
	}
	if err := s.events.PublishVerdict(ctx, ev); err != nil {
		s.logger.Warn("failed to publish verdict event",
			zap.String("intent_id", in.ID),
			zap.Error(err))
	}

	s.logger.Debug("verdict produced",
		zap.String("intent_id", in.ID),
		zap.String("agent_id", in.AgentID),
		zap.String("kind", string(v.Kind)),
		zap.String("reason", v.Reason))
}

// Submit evaluates the intent and creates a task when accepted.
func (s *service) Submit(ctx context.Context, in *intent.Intent, title string, opts ...task.Option) (*task.Task, intent.Verdict, error) {
	ctx, span := s.tracer.Start(ctx, "governor.submit")
	defer span.End()

	v, err := s.Evaluate(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, intent.Verdict{}, err
	}
	if !v.Accepted() {
		return nil, v, nil
	}

	t := task.NewFromIntent(in, v, title, opts...)
	if err := s.tasks.Save(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, v, fmt.Errorf("failed to save task: %w", err)
	}

	s.mu.Lock()
	s.plans[t.ID] = saga.NewPlan(t.ID)
	s.mu.Unlock()

	if s.taskCounter != nil {
		s.taskCounter.Add(ctx, 1)
	}

	s.logger.Info("task created",
		zap.String("task_id", t.ID),
		zap.String("intent_id", in.ID),
		zap.String("title", title))

	return t, v, nil
}

// GetTask returns a task by ID.
func (s *service) GetTask(ctx context.Context, id string) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "governor.get_task")
	defer span.End()

	span.SetAttributes(attribute.String("task_id", id))

	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	return s.tasks.Get(ctx, id)
}

// ListTasks returns tasks matching the filter.
func (s *service) ListTasks(ctx context.Context, filter store.ListFilter) ([]*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "governor.list_tasks")
	defer span.End()

	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, filter)
}

// Transition requests a task state change, persists it and publishes a
// transition event. A *task.NotAllowedError passes through unwrapped so
// callers can inspect the rejected pair.
func (s *service) Transition(ctx context.Context, taskID string, to task.State) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "governor.transition")
	defer span.End()

	span.SetAttributes(
		attribute.String("task_id", taskID),
		attribute.String("to", string(to)),
	)

	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	from := t.State
	if err := t.RequestTransition(to); err != nil {
		span.SetAttributes(attribute.String("from", string(from)))
		return nil, err
	}

	if err := s.tasks.Save(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	s.publishTransition(ctx, taskID, from, to)

	return t, nil
}

func (s *service) publishTransition(ctx context.Context, taskID string, from, to task.State) {
	ev := events.TransitionEvent{
		TaskID: taskID,
		From:   from,
		To:     to,
		At:     time.Now().UTC(),
	}
	if err := s.events.PublishTransition(ctx, ev); err != nil {
		s.logger.Warn("failed to publish transition event",
			zap.String("task_id", taskID),
			zap.Error(err))
	}

	s.logger.Info("task transitioned",
		zap.String("task_id", taskID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// ExecuteStep runs one governed step.
func (s *service) ExecuteStep(ctx context.Context, req *ExecuteStepRequest) (*StepOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "governor.execute_step")
	defer span.End()

	if req == nil || req.Intent == nil || req.Execute == nil {
		return nil, errors.New("task ID, intent and executor are required")
	}

	span.SetAttributes(
		attribute.String("task_id", req.TaskID),
		attribute.String("intent_id", req.Intent.ID),
		attribute.String("action_type", string(req.Intent.Action.Type)),
	)

	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	t, err := s.tasks.Get(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if t.State != task.StateInProgress {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotInProgress, t.ID, t.State)
	}

	v, err := s.Evaluate(ctx, req.Intent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !v.Accepted() {
		return &StepOutcome{Verdict: v}, nil
	}

	// A Modify verdict substitutes the replacement action.
	action := req.Intent.Action
	if v.Kind == intent.VerdictModify && v.Replacement != nil {
		action = *v.Replacement
	}

	plan := s.planFor(t.ID)
	step := t.RecordStep(action)
	step.Status = task.StepInProgress
	plan.AddStep(step.ID, action, req.Undo)

	outcome := &StepOutcome{Verdict: v}

	started := time.Now()
	result, execErr := req.Execute(ctx, action)
	elapsed := time.Since(started)

	if result == nil {
		result = &task.StepResult{Success: execErr == nil}
	}
	if result.Metrics.Duration == 0 {
		result.Metrics.Duration = elapsed
	}
	step.Result = result

	if s.stepCounter != nil {
		s.stepCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", execErr == nil),
		))
	}

	if execErr == nil {
		step.Status = task.StepCompleted
		if err := plan.MarkCompleted(step.ID); err != nil {
			s.logger.Warn("failed to mark saga step completed",
				zap.String("step_id", step.ID), zap.Error(err))
		}
		if err := s.tasks.Save(ctx, t); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to save task: %w", err)
		}
		outcome.Step = step
		return outcome, nil
	}

	// Forward work failed: record the failure, compensate everything
	// completed before this step, and park the task in Blocked.
	step.Status = task.StepFailed
	result.Success = false
	if result.Output == "" {
		result.Output = execErr.Error()
	}
	if err := plan.MarkFailed(step.ID); err != nil {
		s.logger.Warn("failed to mark saga step failed",
			zap.String("step_id", step.ID), zap.Error(err))
	}

	s.logger.Warn("step execution failed, rolling back",
		zap.String("task_id", t.ID),
		zap.String("step_id", step.ID),
		zap.Error(execErr))

	rollbackErr := s.rollback(ctx, t.ID, plan, step.ID)
	outcome.RolledBack = rollbackErr == nil
	outcome.Step = step

	from := t.State
	if err := t.RequestTransition(task.StateBlocked); err == nil {
		s.publishTransition(ctx, t.ID, from, task.StateBlocked)
	}
	if err := s.tasks.Save(ctx, t); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if rollbackErr != nil {
		span.RecordError(rollbackErr)
		span.SetStatus(codes.Error, rollbackErr.Error())
		return outcome, fmt.Errorf("step %s failed (%v); rollback aborted: %w", step.ID, execErr, rollbackErr)
	}

	return outcome, fmt.Errorf("step %s failed: %w", step.ID, execErr)
}

// Rollback compensates a task's completed steps from the named step
// backward.
func (s *service) Rollback(ctx context.Context, taskID, fromStep string) error {
	ctx, span := s.tracer.Start(ctx, "governor.rollback")
	defer span.End()

	span.SetAttributes(
		attribute.String("task_id", taskID),
		attribute.String("from_step", fromStep),
	)

	if err := s.checkClosed(); err != nil {
		return err
	}

	s.mu.Lock()
	plan, ok := s.plans[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no saga plan for task %s: %w", taskID, store.ErrTaskNotFound)
	}

	if err := s.rollback(ctx, taskID, plan, fromStep); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// rollback runs the plan's compensations and publishes the outcome.
func (s *service) rollback(ctx context.Context, taskID string, plan *saga.Plan, fromStep string) error {
	if s.runner == nil {
		return ErrNoUndoRunner
	}

	err := plan.Rollback(ctx, fromStep, s.runner)

	if s.rollbackCounter != nil {
		s.rollbackCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("aborted", err != nil),
		))
	}

	ev := events.RollbackEvent{
		TaskID:   taskID,
		FromStep: fromStep,
		Aborted:  err != nil,
		At:       time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if pubErr := s.events.PublishRollback(ctx, ev); pubErr != nil {
		s.logger.Warn("failed to publish rollback event",
			zap.String("task_id", taskID),
			zap.Error(pubErr))
	}

	return err
}

// planFor returns the task's saga plan, creating one for tasks that were
// not submitted through this service instance.
func (s *service) planFor(taskID string) *saga.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[taskID]
	if !ok {
		plan = saga.NewPlan(taskID)
		s.plans[taskID] = plan
	}
	return plan
}

// Plan returns the task's saga ledger summary.
func (s *service) Plan(taskID string) (saga.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[taskID]
	if !ok {
		return saga.Summary{}, false
	}
	return plan.Summarize(), true
}

// Metrics exposes the accumulated decision counters.
func (s *service) Metrics() *policy.Metrics {
	return s.stats
}

// Close closes the service.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

func (s *service) checkClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("service is closed")
	}
	return nil
}

package policy

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// Outcome is a validator's judgement of one intent.
type Outcome string

const (
	// OutcomePass accepts the intent and moves to the next validator.
	OutcomePass Outcome = "pass"
	// OutcomeWarn accepts with a soft warning; evaluation continues and
	// the warning is carried on the final verdict.
	OutcomeWarn Outcome = "warn"
	// OutcomeFail rejects the intent; evaluation stops immediately.
	OutcomeFail Outcome = "fail"
	// OutcomeEscalate stops evaluation and demands a human decision.
	OutcomeEscalate Outcome = "escalate"
	// OutcomeDefer stops evaluation pending missing information.
	OutcomeDefer Outcome = "defer"
)

// Result carries a validator's outcome plus the data the engine needs to
// build the corresponding verdict variant.
type Result struct {
	Outcome Outcome

	// Reason explains a fail; Warning annotates a warn.
	Reason  string
	Warning string

	// Code refines a fail. Zero value degrades to CodeActionNotAllowed.
	Code intent.DenyCode

	// Question, Context and Timeout shape an escalate outcome.
	Question string
	Context  map[string]string
	Timeout  time.Duration

	// Missing and RetryAfter shape a defer outcome.
	Missing    []string
	RetryAfter time.Duration
}

// Pass returns a passing result.
func Pass() Result { return Result{Outcome: OutcomePass} }

// Warn returns a soft-warning pass.
func Warn(warning string) Result { return Result{Outcome: OutcomeWarn, Warning: warning} }

// Fail returns a rejecting result with a closed-set code.
func Fail(reason string, code intent.DenyCode) Result {
	return Result{Outcome: OutcomeFail, Reason: reason, Code: code}
}

// Escalate returns a result demanding a human decision.
func Escalate(question string, context map[string]string, timeout time.Duration) Result {
	return Result{Outcome: OutcomeEscalate, Question: question, Context: context, Timeout: timeout}
}

// DeferFor returns a result postponing the decision.
func DeferFor(missing []string, retryAfter time.Duration) Result {
	return Result{Outcome: OutcomeDefer, Missing: missing, RetryAfter: retryAfter}
}

// Validator is one ordered, pluggable policy unit. Validate inspects the
// intent plus read-only policy state and must not mutate either. A non-nil
// error signals an internal validator failure, not a policy rejection.
type Validator interface {
	// Name returns the validator identifier for logs and errors.
	Name() string

	// Priority orders the chain: lower runs first, ties preserve
	// registration order.
	Priority() int

	// Validate judges one intent against policy state.
	Validate(ctx context.Context, in *intent.Intent, state *State) (Result, error)
}

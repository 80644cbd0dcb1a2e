package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// Engine reduces the validator chain's outcomes to exactly one Verdict
// per intent.
type Engine struct {
	logger *zap.Logger

	mu         sync.RWMutex
	validators []Validator
}

// NewEngine creates a decision engine. A nil logger degrades to a no-op.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Register appends a validator and re-sorts the chain ascending by
// priority. The sort is stable, so equal priorities keep registration
// order.
func (e *Engine) Register(v Validator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators = append(e.validators, v)
	sort.SliceStable(e.validators, func(i, j int) bool {
		return e.validators[i].Priority() < e.validators[j].Priority()
	})
}

// Validators returns the chain in evaluation order.
func (e *Engine) Validators() []Validator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Validator, len(e.validators))
	copy(out, e.validators)
	return out
}

// Evaluate runs the chain in priority order and returns one verdict.
//
// Pass and Warn move to the next validator (warnings accumulate onto an
// eventual Allow). The first Fail stops evaluation and yields Deny; later
// validators are never invoked. Escalate and Defer likewise stop the
// chain with RequireHuman and Defer verdicts. An empty chain yields
// Allow. Evaluation never mutates state; the caller records counters and
// consumes rate tokens after the verdict is returned.
//
// A validator returning an error is an internal failure, not a policy
// decision: the error propagates and no verdict is produced.
func (e *Engine) Evaluate(ctx context.Context, in *intent.Intent, state *State) (intent.Verdict, error) {
	if state == nil {
		state = &State{}
	}

	var warnings []string
	for _, v := range e.Validators() {
		res, err := v.Validate(ctx, in, state)
		if err != nil {
			return intent.Verdict{}, fmt.Errorf("validator %s: internal failure: %w", v.Name(), err)
		}

		switch res.Outcome {
		case OutcomePass:
			continue
		case OutcomeWarn:
			warnings = append(warnings, res.Warning)
		case OutcomeFail:
			e.logger.Debug("intent denied",
				zap.String("intent_id", in.ID),
				zap.String("validator", v.Name()),
				zap.String("reason", res.Reason))
			return intent.Deny(res.Reason, res.Code), nil
		case OutcomeEscalate:
			return intent.RequireHuman(res.Question, res.Context, res.Timeout), nil
		case OutcomeDefer:
			return intent.Defer(res.Missing, res.RetryAfter), nil
		default:
			return intent.Verdict{}, fmt.Errorf("validator %s: unknown outcome %q", v.Name(), res.Outcome)
		}
	}

	return intent.Allow(warnings...), nil
}

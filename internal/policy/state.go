package policy

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// State is the shared policy state validators read during evaluation.
//
// It is passed explicitly into Evaluate rather than held as a process
// global. Evaluation treats it as read-only; anything that accumulates
// history (the Metrics counters, the rate limiter's token bucket) is
// advanced by the caller strictly after a verdict is returned.
type State struct {
	// StrictMode requires every file and command action to declare
	// matching effects.
	StrictMode bool

	// AllowDangerous permits commands matching the dangerous patterns
	// to pass with a warning instead of failing.
	AllowDangerous bool

	// Rules are the loaded policy rules. Nil means no rule file.
	Rules *Rules

	// Source, when set, supersedes Rules and serves the hot-reloaded
	// rule set. Validators read through CurrentRules.
	Source *RuleSource

	// Limiter throttles intent throughput per engine. Validators only
	// read the bucket (Tokens); the caller consumes after acceptance.
	Limiter *rate.Limiter
}

// CurrentRules returns the rule set in effect for this evaluation: the
// watched source's latest snapshot when one is attached, the static
// Rules field otherwise.
func (s *State) CurrentRules() *Rules {
	if s.Source != nil {
		return s.Source.Current()
	}
	return s.Rules
}

// Metrics accumulates decision history. Counters are updated by the
// caller of Evaluate, never inside the evaluation path itself.
type Metrics struct {
	evaluated     atomic.Int64
	denied        atomic.Int64
	humanRequired atomic.Int64
	deferred      atomic.Int64
	modified      atomic.Int64
}

// RecordVerdict advances counters for one produced verdict.
func (m *Metrics) RecordVerdict(kind intent.VerdictKind) {
	m.evaluated.Add(1)
	switch kind {
	case intent.VerdictDeny:
		m.denied.Add(1)
	case intent.VerdictRequireHuman:
		m.humanRequired.Add(1)
	case intent.VerdictDefer:
		m.deferred.Add(1)
	case intent.VerdictModify:
		m.modified.Add(1)
	}
}

// Evaluated returns the total number of verdicts recorded.
func (m *Metrics) Evaluated() int64 { return m.evaluated.Load() }

// Denied returns the number of Deny verdicts recorded.
func (m *Metrics) Denied() int64 { return m.denied.Load() }

// HumanRequired returns the number of RequireHuman verdicts recorded.
func (m *Metrics) HumanRequired() int64 { return m.humanRequired.Load() }

// Deferred returns the number of Defer verdicts recorded.
func (m *Metrics) Deferred() int64 { return m.deferred.Load() }

// Modified returns the number of Modify verdicts recorded.
func (m *Metrics) Modified() int64 { return m.modified.Load() }

package task

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// CheckKind categorizes a quality gate check.
type CheckKind string

const (
	CheckTest      CheckKind = "test"
	CheckLint      CheckKind = "lint"
	CheckTypecheck CheckKind = "typecheck"
	CheckBuild     CheckKind = "build"
	CheckCustom    CheckKind = "custom"
)

// ConditionKind selects how a check's output is judged.
type ConditionKind string

const (
	// ConditionExitCode passes when the exit code matches exactly.
	ConditionExitCode ConditionKind = "exit_code"
	// ConditionRegex passes when the output matches the pattern.
	ConditionRegex ConditionKind = "regex"
	// ConditionContains passes when the output contains the substring.
	ConditionContains ConditionKind = "contains"
)

// Condition is one check's pass condition.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	// ExitCode is the required exit code for ConditionExitCode.
	ExitCode int `json:"exit_code,omitempty"`

	// Pattern is the regular expression for ConditionRegex.
	Pattern string `json:"pattern,omitempty"`

	// Substring is the required output fragment for ConditionContains.
	Substring string `json:"substring,omitempty"`
}

// Met reports whether the condition holds for the given check output.
func (c Condition) Met(exitCode int, output string) (bool, error) {
	switch c.Kind {
	case ConditionExitCode:
		return exitCode == c.ExitCode, nil
	case ConditionRegex:
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return false, fmt.Errorf("invalid pass condition pattern %q: %w", c.Pattern, err)
		}
		return re.MatchString(output), nil
	case ConditionContains:
		return strings.Contains(output, c.Substring), nil
	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

// Check is one quality gate check.
type Check struct {
	Name      string    `json:"name"`
	Kind      CheckKind `json:"kind"`
	Command   string    `json:"command,omitempty"`
	Condition Condition `json:"condition"`

	// Weight feeds the Weighted strategy's injected scorer.
	Weight float64 `json:"weight,omitempty"`
}

// Strategy aggregates check outcomes into a gate outcome.
type Strategy string

const (
	// StrategyFailFast stops at the first failing check.
	StrategyFailFast Strategy = "fail_fast"
	// StrategyAllMustPass runs every check and fails if any failed.
	StrategyAllMustPass Strategy = "all_must_pass"
	// StrategyWeighted delegates to an injected scoring function.
	StrategyWeighted Strategy = "weighted"
)

// CheckOutput is what the runner observed for one executed check.
type CheckOutput struct {
	ExitCode int
	Output   string
}

// CheckRunner executes one check and reports its raw output. All I/O
// lives behind this function; the gate itself never runs commands.
type CheckRunner func(ctx context.Context, check Check) (CheckOutput, error)

// Scorer turns check results into a weighted gate outcome. The scoring
// function is an external collaborator: the Weighted strategy requires
// one and never invents a formula of its own.
type Scorer interface {
	Score(results []CheckResult) (score float64, passed bool)
}

// CheckResult is one check's judged outcome.
type CheckResult struct {
	Check    Check  `json:"check"`
	Passed   bool   `json:"passed"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
}

// GateResult is the aggregate outcome of running a quality gate.
type GateResult struct {
	Passed  bool          `json:"passed"`
	Results []CheckResult `json:"results"`

	// Score is only meaningful for the Weighted strategy.
	Score float64 `json:"score,omitempty"`
}

// ErrScorerRequired is returned when a Weighted gate runs without an
// injected scorer.
var ErrScorerRequired = errors.New("weighted gate strategy requires a scorer")

// QualityGate is a configurable set of checks gating task completion.
type QualityGate struct {
	Checks   []Check  `json:"checks"`
	Strategy Strategy `json:"strategy"`
}

// Run executes the gate's checks through the supplied runner and
// aggregates them per the gate's strategy. An empty gate passes.
func (g *QualityGate) Run(ctx context.Context, runner CheckRunner, scorer Scorer) (GateResult, error) {
	if g.Strategy == StrategyWeighted && scorer == nil {
		return GateResult{}, ErrScorerRequired
	}

	result := GateResult{Passed: true}
	for _, check := range g.Checks {
		out, err := runner(ctx, check)
		if err != nil {
			return GateResult{}, fmt.Errorf("check %s: %w", check.Name, err)
		}
		passed, err := check.Condition.Met(out.ExitCode, out.Output)
		if err != nil {
			return GateResult{}, fmt.Errorf("check %s: %w", check.Name, err)
		}

		result.Results = append(result.Results, CheckResult{
			Check:    check,
			Passed:   passed,
			ExitCode: out.ExitCode,
			Output:   out.Output,
		})

		if !passed {
			result.Passed = false
			if g.Strategy == StrategyFailFast {
				return result, nil
			}
		}
	}

	if g.Strategy == StrategyWeighted {
		result.Score, result.Passed = scorer.Score(result.Results)
	}
	return result, nil
}

package policy

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/governd/internal/intent"
)

// Built-in validator priorities. Gaps leave room for custom validators.
const (
	PriorityRateLimit   = 5
	PriorityPath        = 10
	PriorityCommand     = 20
	PriorityEffectAudit = 30
)

// RateLimitValidator rejects intents when the policy rate bucket is
// empty. It only reads the bucket; the caller consumes a token after an
// accepted verdict, keeping evaluation side-effect free.
type RateLimitValidator struct{}

func (RateLimitValidator) Name() string  { return "rate-limit" }
func (RateLimitValidator) Priority() int { return PriorityRateLimit }

func (RateLimitValidator) Validate(_ context.Context, _ *intent.Intent, state *State) (Result, error) {
	if state.Limiter == nil {
		return Pass(), nil
	}
	if state.Limiter.Tokens() < 1 {
		return Fail("intent rate limit exceeded", intent.CodeRateLimited), nil
	}
	return Pass(), nil
}

// PathValidator checks file-oriented actions against the rule set's
// allow/deny path globs.
type PathValidator struct{}

func (PathValidator) Name() string  { return "path-policy" }
func (PathValidator) Priority() int { return PriorityPath }

func (PathValidator) Validate(_ context.Context, in *intent.Intent, state *State) (Result, error) {
	switch in.Action.Type {
	case intent.ActionEditFile, intent.ActionCreateFile, intent.ActionDeleteFile:
	default:
		return Pass(), nil
	}

	if in.Action.Path == "" {
		return Fail("file action without a path", intent.CodePathForbidden), nil
	}
	rules := state.CurrentRules()
	if rules == nil {
		return Pass(), nil
	}
	if !rules.PathAllowed(in.Action.Path) {
		return Fail(fmt.Sprintf("path %q is outside policy", in.Action.Path), intent.CodePathForbidden), nil
	}
	return Pass(), nil
}

// CommandValidator rejects blocked commands outright and fails or warns
// on dangerous ones depending on the AllowDangerous flag.
type CommandValidator struct{}

func (CommandValidator) Name() string  { return "command-policy" }
func (CommandValidator) Priority() int { return PriorityCommand }

func (CommandValidator) Validate(_ context.Context, in *intent.Intent, state *State) (Result, error) {
	if in.Action.Type != intent.ActionRunCommand {
		return Pass(), nil
	}
	rules := state.CurrentRules()
	if rules == nil {
		return Pass(), nil
	}

	cmd := in.Action.Command
	if rules.CommandBlocked(cmd) {
		return Fail(fmt.Sprintf("command matches blocked pattern: %s", cmd), intent.CodeCommandBlocked), nil
	}
	if rules.CommandDangerous(cmd) {
		if state.AllowDangerous || rules.AllowDangerous {
			return Warn(fmt.Sprintf("dangerous command permitted by policy: %s", cmd)), nil
		}
		return Fail(fmt.Sprintf("command matches dangerous pattern: %s", cmd), intent.CodeCommandBlocked), nil
	}
	return Pass(), nil
}

// EffectAuditValidator audits declared effects against the action. In
// strict mode an undeclared file or process effect fails the intent; the
// audit downgrades to a warning otherwise. It also bounds the number of
// declared effects.
type EffectAuditValidator struct{}

func (EffectAuditValidator) Name() string  { return "effect-audit" }
func (EffectAuditValidator) Priority() int { return PriorityEffectAudit }

func (EffectAuditValidator) Validate(_ context.Context, in *intent.Intent, state *State) (Result, error) {
	rules := state.CurrentRules()
	if rules != nil && rules.MaxEffects > 0 && len(in.Effects) > rules.MaxEffects {
		return Fail(fmt.Sprintf("intent declares %d effects, limit is %d", len(in.Effects), rules.MaxEffects),
			intent.CodeEffectUndeclared), nil
	}

	want, ok := requiredScope(in.Action.Type)
	if !ok {
		return Pass(), nil
	}
	for _, e := range in.Effects {
		if e.Scope == want {
			return Pass(), nil
		}
	}

	strict := state.StrictMode || (rules != nil && rules.StrictMode)
	msg := fmt.Sprintf("action %s declares no %s effect", in.Action.Type, want)
	if strict {
		return Fail(msg, intent.CodeEffectUndeclared), nil
	}
	return Warn(msg), nil
}

func requiredScope(t intent.ActionType) (intent.EffectScope, bool) {
	switch t {
	case intent.ActionEditFile, intent.ActionCreateFile, intent.ActionDeleteFile:
		return intent.EffectFile, true
	case intent.ActionRunCommand:
		return intent.EffectProcess, true
	case intent.ActionReadMemory, intent.ActionWriteMemory:
		return intent.EffectMemory, true
	default:
		return "", false
	}
}

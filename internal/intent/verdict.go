package intent

import "time"

// VerdictKind tags the closed set of decision outcomes.
type VerdictKind string

const (
	// VerdictAllow accepts the intent as proposed.
	VerdictAllow VerdictKind = "allow"
	// VerdictDeny rejects the intent with a reason and closed-set code.
	VerdictDeny VerdictKind = "deny"
	// VerdictRequireHuman blocks the intent pending a human decision.
	VerdictRequireHuman VerdictKind = "require_human"
	// VerdictModify accepts a replacement action instead of the original.
	VerdictModify VerdictKind = "modify"
	// VerdictDefer postpones the decision until missing info arrives.
	VerdictDefer VerdictKind = "defer"
)

// DenyCode is the closed set of machine-readable denial codes. A Deny
// verdict always carries one; free text alone is never sufficient.
type DenyCode string

const (
	CodeActionNotAllowed DenyCode = "action_not_allowed"
	CodePathForbidden    DenyCode = "path_forbidden"
	CodeCommandBlocked   DenyCode = "command_blocked"
	CodeRateLimited      DenyCode = "rate_limited"
	CodeEffectUndeclared DenyCode = "effect_undeclared"
	CodeStrictMode       DenyCode = "strict_mode_violation"
)

// Verdict is the decision engine's resolution of one Intent. It is data,
// not an error: callers branch on Kind. Only the fields belonging to the
// tagged variant are populated.
type Verdict struct {
	Kind VerdictKind `json:"kind"`

	// Deny fields.
	Reason string   `json:"reason,omitempty"`
	Code   DenyCode `json:"code,omitempty"`

	// RequireHuman fields. Context carries enough state to render a
	// decision prompt without re-deriving task state.
	Question string            `json:"question,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`

	// Modify fields.
	Original    *Action  `json:"original,omitempty"`
	Replacement *Action  `json:"replacement,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`

	// Defer fields.
	Missing    []string      `json:"missing,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Allow returns an accepting verdict. Soft validator warnings, if any,
// are preserved for the caller.
func Allow(warnings ...string) Verdict {
	return Verdict{Kind: VerdictAllow, Warnings: warnings}
}

// Deny returns a rejecting verdict. An empty code degrades to
// CodeActionNotAllowed, keeping the closed-set invariant.
func Deny(reason string, code DenyCode) Verdict {
	if code == "" {
		code = CodeActionNotAllowed
	}
	return Verdict{Kind: VerdictDeny, Reason: reason, Code: code}
}

// RequireHuman returns a verdict that blocks until a human answers.
func RequireHuman(question string, context map[string]string, timeout time.Duration) Verdict {
	return Verdict{Kind: VerdictRequireHuman, Question: question, Context: context, Timeout: timeout}
}

// Modify returns a verdict substituting replacement for original.
func Modify(original, replacement Action, reason string, warnings ...string) Verdict {
	return Verdict{
		Kind:        VerdictModify,
		Original:    &original,
		Replacement: &replacement,
		Reason:      reason,
		Warnings:    warnings,
	}
}

// Defer returns a verdict postponing the decision.
func Defer(missing []string, retryAfter time.Duration) Verdict {
	return Verdict{Kind: VerdictDefer, Missing: missing, RetryAfter: retryAfter}
}

// Accepted reports whether the verdict permits forward progress
// (Allow or Modify).
func (v Verdict) Accepted() bool {
	return v.Kind == VerdictAllow || v.Kind == VerdictModify
}

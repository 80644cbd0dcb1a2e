// Package policy implements the ordered validator chain and the decision
// engine that reduces validator outcomes to exactly one Verdict per Intent.
//
// Validators are held in a registry sorted ascending by numeric priority;
// ties preserve registration order. Evaluation short-circuits on the first
// failing validator and never mutates shared policy state: running counters
// are updated by the caller after the verdict is produced, which keeps
// evaluation pure and safely repeatable.
//
// A validator that fails internally (as opposed to returning a policy Fail)
// is a configuration error. The engine propagates it as an error distinct
// from any Deny verdict; it is never converted into Allow or Deny.
package policy

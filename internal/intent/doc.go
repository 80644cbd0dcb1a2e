// Package intent defines the proposal vocabulary for agent governance.
//
// An Intent is an agent's immutable, typed proposal to perform exactly one
// action. A Verdict is the decision engine's binding resolution of that
// proposal. Both are plain data: an Intent is consumed exactly once by the
// decision engine and never mutated, and a Verdict is a value callers branch
// on, never an error.
//
// # Identifier ordering
//
// Intent and agent identifiers are random 128-bit values (UUIDv4) with no
// ordering guarantee. Task-side identifiers (see the task package) are
// time-ordered UUIDv7 values. Code that sorts identifiers by creation time
// must only do so for task-side IDs.
package intent

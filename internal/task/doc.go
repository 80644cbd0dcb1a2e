// Package task defines the persisted lifecycle of accepted work.
//
// A Task is created from an Intent/Verdict pair (or directly) and tracked
// through a closed state machine. RequestTransition is the sole mutator of
// task state: the currently legal transitions are always exactly the
// table-derived successor set of the current state, and terminal states
// have no outgoing edges.
//
// A Task is a plain mutable value with no internal synchronization; the
// storage or orchestration layer that owns it must enforce single-writer
// access. Clone yields an independent copy, not a shared handle.
package task

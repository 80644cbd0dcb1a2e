// Package saga implements per-task compensating rollback.
//
// A Plan is an append-only ledger pairing each forward execution step
// with an optional compensating undo action. Rollback replays undo
// actions for completed steps in strict reverse registration order, never
// forward, and aborts on the first failing compensation: a system in an
// unknown partial-undo state must stop, not guess.
//
// The plan never executes forward actions and performs no I/O of its own.
// Undo execution is delegated to a caller-supplied runner; rollback must
// not run concurrently with forward execution of the same task, which is
// a caller-enforced invariant.
package saga

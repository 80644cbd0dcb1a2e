// Package governor orchestrates the governance pipeline.
//
// The service glues the decision engine, the task store, the saga ledger
// and the event publisher into one surface: agents submit intents, the
// engine produces verdicts, accepted intents become tasks, and task steps
// execute under compensation tracking with automatic rollback on failure.
//
// Decision counters and the rate-limiter bucket are advanced here, after
// a verdict is produced. The engine itself never mutates policy state.
package governor

// Package staleness decides whether recurring scheduled tasks are overdue.
//
// A Task carries a Schedule and the last run instant recorded by the
// scheduler. The Evaluator turns a task, an optional observation read from a
// store, and the current time into a health.Verdict using one of three
// strategies:
//
//   - Lazy, for fixed-interval tasks: overdue once the scheduler's own last
//     run record plus the interval plus the scheduler's sync interval has passed.
//   - Real-time, for fixed-interval tasks: overdue once the last observation
//     plus the interval plus the tolerance window has passed. A missing
//     observation is only trusted when the interval is shorter than the store
//     TTL; otherwise the evaluation falls back to Lazy.
//   - Estimate, for Estimated and Crontab schedules: overdue once the
//     schedule's remaining-time estimate from the latest known run, plus the
//     tolerance window, is no longer positive.
//
// All comparisons are strict: a task exactly at its deadline is overdue.
// Evaluation is pure; Checker adds the I/O around it.
package staleness

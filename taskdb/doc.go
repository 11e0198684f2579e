// Package taskdb reads periodic task definitions from PostgreSQL.
//
// The schema is the one maintained by the scheduler's database backend: a
// task table joined to optional interval and crontab schedule tables.
// Rows are converted into staleness.Task values; a row whose schedule
// cannot be understood keeps a nil Schedule so the staleness evaluator
// reports it instead of silently dropping it.
package taskdb

package staleness

import (
	"context"
	"time"
)

// Task is a recurring task as known to the scheduler.
type Task struct {
	// Name identifies the scheduler entry.
	Name string
	// Key is the name the task runs under, which is what the event monitor
	// records. Empty means Name.
	Key       string
	Enabled   bool
	Schedule  Schedule
	LastRunAt time.Time // zero if the scheduler never ran it
}

// StoreKey returns the key of the task's observations.
func (t Task) StoreKey() string {
	if t.Key != "" {
		return t.Key
	}
	return t.Name
}

// TaskSource lists the scheduler's periodic tasks.
type TaskSource interface {
	Tasks(ctx context.Context) ([]Task, error)
}

// StaticSource is a fixed task list.
type StaticSource []Task

// Tasks implements TaskSource.
func (s StaticSource) Tasks(context.Context) ([]Task, error) {
	out := make([]Task, len(s))
	copy(out, s)
	return out, nil
}

// ActiveTasks keeps enabled tasks that have run at least once.
func ActiveTasks(tasks []Task) []Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.Enabled && !t.LastRunAt.IsZero() {
			out = append(out, t)
		}
	}
	return out
}

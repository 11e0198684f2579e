package staleness

import (
	"fmt"
	"time"

	"github.com/jonwraymond/fleetwatch/health"
)

// Mode selects how fixed-interval tasks are evaluated.
type Mode int

const (
	// ModeLazy trusts only the scheduler's last run record.
	ModeLazy Mode = iota
	// ModeRealtime trusts observations written by the event monitor.
	ModeRealtime
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeLazy:
		return "lazy"
	case ModeRealtime:
		return "realtime"
	default:
		return "unknown"
	}
}

// Observation is the last instant a task was seen running, if any.
type Observation struct {
	At   time.Time
	Seen bool
}

// Observed returns a present observation.
func Observed(at time.Time) Observation {
	return Observation{At: at, Seen: true}
}

// Params are the thresholds shared by every evaluation.
type Params struct {
	// TTL is the expiry of the durable observation store.
	TTL time.Duration
	// Tolerance is the probe interval allowed on top of a task's interval.
	Tolerance time.Duration
	// SyncInterval is how often the scheduler persists last run records.
	SyncInterval time.Duration
}

// Evaluator applies the staleness strategies. It is stateless and safe for
// concurrent use.
type Evaluator struct {
	params Params
}

// NewEvaluator creates an evaluator with p.
func NewEvaluator(p Params) *Evaluator {
	return &Evaluator{params: p}
}

// Params returns the evaluator's thresholds.
func (e *Evaluator) Params() Params {
	return e.params
}

// Lazy reports whether a task running every `every` is on time according to
// the scheduler's record alone.
func (e *Evaluator) Lazy(lastRunAt time.Time, every time.Duration, now time.Time) bool {
	return now.Before(lastRunAt.Add(every + e.params.SyncInterval))
}

// Realtime reports whether a task running every `every` is on time according
// to obs. Without an observation the task is late if the store would still
// hold one (every < TTL); otherwise the absence proves nothing and Lazy decides.
func (e *Evaluator) Realtime(lastRunAt time.Time, every time.Duration, obs Observation, now time.Time) bool {
	if !obs.Seen {
		if every < e.params.TTL {
			return false
		}
		return e.Lazy(lastRunAt, every, now)
	}
	return now.Before(obs.At.Add(every + e.params.Tolerance))
}

// Estimate reports whether a task is on time according to its schedule's
// estimate, anchored at the later of obs and lastRunAt.
func (e *Evaluator) Estimate(est Estimator, lastRunAt time.Time, obs Observation, now time.Time) bool {
	anchor := lastRunAt
	if obs.Seen && obs.At.After(anchor) {
		anchor = obs.At
	}
	return est.Remaining(anchor, now)+e.params.Tolerance > 0
}

// Evaluate dispatches on the task's schedule and returns its verdict. Fixed
// interval tasks use mode; estimated and crontab tasks always use Estimate.
func (e *Evaluator) Evaluate(mode Mode, task Task, obs Observation, now time.Time) health.Verdict {
	var ok bool
	reason := fmt.Sprintf("scheduled task %s has not run for too long", task.Name)

	switch s := task.Schedule.(type) {
	case FixedInterval:
		if mode == ModeRealtime {
			ok = e.Realtime(task.LastRunAt, s.Every, obs, now)
		} else {
			ok = e.Lazy(task.LastRunAt, s.Every, now)
		}
	case Estimator:
		ok = e.Estimate(s, task.LastRunAt, obs, now)
		reason = fmt.Sprintf("scheduled task %s remaining estimate exceeded", task.Name)
	default:
		reason = fmt.Sprintf("scheduled task %s has no schedule", task.Name)
	}

	if ok {
		return health.Pass(task.Name)
	}
	return health.Fail(task.Name, reason)
}

// NeedsObservation reports whether evaluating task in mode reads the store.
func NeedsObservation(mode Mode, task Task) bool {
	switch task.Schedule.(type) {
	case FixedInterval:
		return mode == ModeRealtime
	case Estimator:
		return true
	default:
		return false
	}
}

package staleness

import (
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule describes how a task recurs. The set of implementations is closed:
// FixedInterval, Estimated and Crontab.
type Schedule interface {
	schedule()
}

// Estimator is implemented by schedules without a fixed interval.
type Estimator interface {
	Schedule
	// Remaining returns how long after now the next run is due, counting from
	// the run at anchor. A negative value means the run is already late.
	Remaining(anchor, now time.Time) time.Duration
}

// FixedInterval runs a task every Every.
type FixedInterval struct {
	Every time.Duration
}

func (FixedInterval) schedule() {}

// String implements fmt.Stringer.
func (f FixedInterval) String() string {
	return "every " + f.Every.String()
}

// overdue is returned by estimators that cannot place the next run. It stays
// negative after any tolerance is added.
const overdue = time.Duration(math.MinInt64 / 2)

// EstimateFunc computes the remaining time until the next run.
type EstimateFunc func(anchor, now time.Time) time.Duration

// Estimated is a schedule known only through an estimate function.
type Estimated struct {
	Estimate EstimateFunc
}

func (Estimated) schedule() {}

// Remaining implements Estimator. A nil estimate is always late.
func (e Estimated) Remaining(anchor, now time.Time) time.Duration {
	if e.Estimate == nil {
		return overdue
	}
	return e.Estimate(anchor, now)
}

// Crontab is a cron expression schedule.
type Crontab struct {
	expr  string
	sched cron.Schedule
}

// ParseCrontab parses a standard five-field cron expression or a descriptor
// such as "@hourly". A "CRON_TZ=" prefix selects the time zone.
func ParseCrontab(expr string) (Crontab, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Crontab{}, fmt.Errorf("staleness: parse crontab %q: %w", expr, err)
	}
	return Crontab{expr: expr, sched: sched}, nil
}

func (Crontab) schedule() {}

// Remaining implements Estimator: the next activation after anchor, measured from now.
func (c Crontab) Remaining(anchor, now time.Time) time.Duration {
	if c.sched == nil {
		return overdue
	}
	next := c.sched.Next(anchor)
	if next.IsZero() {
		return overdue
	}
	return next.Sub(now)
}

// String returns the cron expression.
func (c Crontab) String() string {
	return c.expr
}

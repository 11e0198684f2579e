package taskdb

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/fleetwatch/staleness"
)

// Row is one task row with its joined schedule columns. Nullable columns
// are pointers.
type Row struct {
	Name      string
	Task      string
	Enabled   bool
	LastRunAt *time.Time

	Every  *int64
	Period *string

	Minute      *string
	Hour        *string
	DayOfMonth  *string
	MonthOfYear *string
	DayOfWeek   *string
	Timezone    *string

	SolarEvent *string
	Latitude   *float64
	Longitude  *float64

	ClockedTime *time.Time
}

// ErrNoSchedule reports a row that references none of the known schedule
// kinds. Such rows cannot be judged and are skipped by Source.
var ErrNoSchedule = errors.New("no known schedule")

var periods = map[string]time.Duration{
	"days":         24 * time.Hour,
	"hours":        time.Hour,
	"minutes":      time.Minute,
	"seconds":      time.Second,
	"microseconds": time.Microsecond,
}

// ToTask converts r. The error reports why the schedule was left nil; the
// returned task is usable either way.
func (r Row) ToTask() (staleness.Task, error) {
	t := staleness.Task{Name: r.Name, Key: r.Task, Enabled: r.Enabled}
	if r.LastRunAt != nil {
		t.LastRunAt = r.LastRunAt.UTC()
	}

	sched, err := r.schedule()
	t.Schedule = sched
	return t, err
}

func (r Row) schedule() (staleness.Schedule, error) {
	switch {
	case r.Every != nil:
		period := "seconds"
		if r.Period != nil {
			period = strings.ToLower(*r.Period)
		}
		unit, ok := periods[period]
		if !ok {
			return nil, fmt.Errorf("taskdb: task %s: unknown period %q", r.Name, period)
		}
		if *r.Every <= 0 {
			return nil, fmt.Errorf("taskdb: task %s: non-positive interval %d", r.Name, *r.Every)
		}
		return staleness.FixedInterval{Every: time.Duration(*r.Every) * unit}, nil
	case r.Minute != nil:
		expr := r.CronExpr()
		c, err := staleness.ParseCrontab(expr)
		if err != nil {
			return nil, fmt.Errorf("taskdb: task %s: %w", r.Name, err)
		}
		return c, nil
	case r.SolarEvent != nil:
		if r.Latitude == nil || r.Longitude == nil {
			return nil, fmt.Errorf("taskdb: task %s: solar schedule without coordinates", r.Name)
		}
		sol, err := NewSolar(*r.SolarEvent, *r.Latitude, *r.Longitude)
		if err != nil {
			return nil, fmt.Errorf("taskdb: task %s: %w", r.Name, err)
		}
		return staleness.Estimated{Estimate: sol.Remaining}, nil
	case r.ClockedTime != nil:
		return staleness.Estimated{Estimate: clocked(r.ClockedTime.UTC())}, nil
	default:
		return nil, fmt.Errorf("taskdb: task %s: %w", r.Name, ErrNoSchedule)
	}
}

// clocked estimates a one-off run at at. Once a run at or after at is
// recorded nothing further is due.
func clocked(at time.Time) staleness.EstimateFunc {
	return func(anchor, now time.Time) time.Duration {
		if !anchor.Before(at) {
			return never
		}
		return at.Sub(now)
	}
}

// CronExpr renders the crontab columns as a five-field expression with a
// CRON_TZ prefix. Missing fields default to "*" and the zone to UTC.
func (r Row) CronExpr() string {
	field := func(p *string) string {
		if p == nil || strings.TrimSpace(*p) == "" {
			return "*"
		}
		return strings.TrimSpace(*p)
	}
	tz := "UTC"
	if r.Timezone != nil && *r.Timezone != "" {
		tz = *r.Timezone
	}
	return fmt.Sprintf("CRON_TZ=%s %s %s %s %s %s", tz,
		field(r.Minute), field(r.Hour), field(r.DayOfMonth), field(r.MonthOfYear), field(r.DayOfWeek))
}

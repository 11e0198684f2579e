package taskdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/staleness"
)

// TasksQuery selects every periodic task with its schedule columns.
const TasksQuery = `
SELECT t.name, t.task, t.enabled, t.last_run_at,
       i.every, i.period,
       c.minute, c.hour, c.day_of_month, c.month_of_year, c.day_of_week, c.timezone,
       s.event, s.latitude::float8, s.longitude::float8,
       k.clocked_time
FROM django_celery_beat_periodictask t
LEFT JOIN django_celery_beat_intervalschedule i ON i.id = t.interval_id
LEFT JOIN django_celery_beat_crontabschedule c ON c.id = t.crontab_id
LEFT JOIN django_celery_beat_solarschedule s ON s.id = t.solar_id
LEFT JOIN django_celery_beat_clockedschedule k ON k.id = t.clocked_id
ORDER BY t.name`

// Querier is the subset of *pgxpool.Pool used by Source.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Config configures a Source.
type Config struct {
	// Query overrides TasksQuery. It must return the same columns in the same order.
	Query string
	// Timeout bounds one listing. Default: 5s
	Timeout time.Duration
	Logger  observe.Logger
}

// Source lists periodic tasks from PostgreSQL. It implements
// staleness.TaskSource.
type Source struct {
	db  Querier
	cfg Config
}

var _ staleness.TaskSource = (*Source)(nil)

// NewSource creates a source over db.
func NewSource(db Querier, cfg Config) *Source {
	if cfg.Query == "" {
		cfg.Query = TasksQuery
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Source{db: db, cfg: cfg}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("taskdb: parse dsn: %w", err)
	}
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.MaxConnLifetime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("taskdb: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("taskdb: ping: %w", err)
	}
	return pool, nil
}

// Tasks implements staleness.TaskSource.
func (s *Source) Tasks(ctx context.Context) ([]staleness.Task, error) {
	var rows []Row
	err := resilience.WithTimeout(ctx, s.cfg.Timeout, func(ctx context.Context) error {
		var err error
		rows, err = s.query(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("taskdb: list tasks: %w", err)
	}

	tasks := make([]staleness.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.ToTask()
		if errors.Is(err, ErrNoSchedule) {
			s.cfg.Logger.Warn(ctx, "skipping task without a known schedule kind", observe.F("task", r.Name))
			continue
		}
		if err != nil {
			s.cfg.Logger.Warn(ctx, "task schedule not understood", observe.F("task", r.Name), observe.F("error", err))
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Source) query(ctx context.Context) ([]Row, error) {
	rows, err := s.db.Query(ctx, s.cfg.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.Name, &r.Task, &r.Enabled, &r.LastRunAt,
			&r.Every, &r.Period,
			&r.Minute, &r.Hour, &r.DayOfMonth, &r.MonthOfYear, &r.DayOfWeek, &r.Timezone,
			&r.SolarEvent, &r.Latitude, &r.Longitude,
			&r.ClockedTime,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

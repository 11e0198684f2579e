package taskdb

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fleetwatch/staleness"
)

// fakeRows serves fixed rows; each row holds one value per scanned column.
type fakeRows struct {
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("got %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.SetZero()
			continue
		}
		v := reflect.ValueOf(row[i])
		if target.Kind() == reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v)
			v = p
		}
		target.Set(v)
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.query = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func row(name string, enabled bool, last any, every any, period any, minute any) []any {
	return []any{name, "tasks." + name, enabled, last, every, period, minute, nil, nil, nil, nil, nil, nil, nil, nil, nil}
}

func solarRow(name string, last any, event string, lat, lon float64) []any {
	return []any{name, "tasks." + name, true, last, nil, nil, nil, nil, nil, nil, nil, nil, event, lat, lon, nil}
}

func TestSource_Tasks(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		row("reports.nightly", true, lastRun, int64(60), "seconds", nil),
		row("cleanup", true, lastRun, nil, nil, "0"),
		row("broken", true, lastRun, int64(1), "fortnights", nil),
		row("orphan", true, lastRun, nil, nil, nil),
		row("disabled", false, nil, int64(1), "minutes", nil),
		solarRow("lights", lastRun, "sunset", 52.52, 13.40),
	}}
	q := &fakeQuerier{rows: rows}

	tasks, err := NewSource(q, Config{}).Tasks(context.Background())
	require.NoError(t, err)
	require.Equal(t, TasksQuery, q.query)
	require.True(t, rows.closed)
	require.Len(t, tasks, 5)

	require.Equal(t, staleness.FixedInterval{Every: time.Minute}, tasks[0].Schedule)
	require.IsType(t, staleness.Crontab{}, tasks[1].Schedule)
	require.Nil(t, tasks[2].Schedule)
	require.False(t, tasks[3].Enabled)
	require.True(t, tasks[3].LastRunAt.IsZero())
	require.IsType(t, staleness.Estimated{}, tasks[4].Schedule)
	require.Equal(t, "tasks.reports.nightly", tasks[0].StoreKey())

	active := staleness.ActiveTasks(tasks)
	require.Len(t, active, 4)
}

func TestSource_SolarTaskStaysHealthy(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		solarRow("lights", lastRun, "sunrise", 52.52, 13.40),
		row("orphan", true, lastRun, nil, nil, nil),
	}}}

	c := staleness.NewChecker(staleness.CheckerConfig{
		Name:      "beat-lazy",
		Source:    NewSource(q, Config{}),
		Evaluator: staleness.NewEvaluator(staleness.Params{SyncInterval: 10 * time.Second}),
		Now:       func() time.Time { return lastRun.Add(time.Second) },
	})

	result := c.Check(context.Background())
	require.Empty(t, result.Failed())
}

func TestSource_Errors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		q := &fakeQuerier{err: errors.New("connection refused")}
		_, err := NewSource(q, Config{}).Tasks(context.Background())
		require.ErrorContains(t, err, "connection refused")
	})

	t.Run("rows", func(t *testing.T) {
		q := &fakeQuerier{rows: &fakeRows{err: errors.New("conn closed")}}
		_, err := NewSource(q, Config{}).Tasks(context.Background())
		require.ErrorContains(t, err, "conn closed")
	})

	t.Run("scan", func(t *testing.T) {
		q := &fakeQuerier{rows: &fakeRows{rows: [][]any{{"short"}}}}
		_, err := NewSource(q, Config{}).Tasks(context.Background())
		require.ErrorContains(t, err, "scan")
	})
}

func TestSource_CustomQuery(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}
	tasks, err := NewSource(q, Config{Query: "SELECT 1"}).Tasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, tasks)
	require.Equal(t, "SELECT 1", q.query)
}

func TestSource_FeedsStalenessChecker(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		row("reports.nightly", true, lastRun, int64(60), "seconds", nil),
	}}}

	c := staleness.NewChecker(staleness.CheckerConfig{
		Name:      "beat-lazy",
		Source:    NewSource(q, Config{}),
		Evaluator: staleness.NewEvaluator(staleness.Params{SyncInterval: 10 * time.Second}),
		Critical:  true,
		Now:       func() time.Time { return lastRun.Add(71 * time.Second) },
	})

	result := c.Check(context.Background())
	require.Len(t, result.Failed(), 1)
	require.Equal(t, "scheduled task reports.nightly has not run for too long", result.Failed()[0].Reason)
}

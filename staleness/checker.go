package staleness

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/store"
)

// CheckerConfig configures a task staleness check.
type CheckerConfig struct {
	// Name is the check name, e.g. "beat-lazy" or "beat-realtime".
	Name string
	Mode Mode

	Source    TaskSource
	Store     store.Store // observations keyed by Task.StoreKey; unused by lazy fixed-interval tasks
	Evaluator *Evaluator

	// Critical makes overdue tasks fail the check instead of degrading it.
	Critical bool

	// ReadTimeout bounds each store read. Default: resilience.DefaultTimeout
	ReadTimeout time.Duration
	// Concurrency bounds parallel store reads. Default: 8
	Concurrency int

	Logger observe.Logger
	Now    func() time.Time
}

// Checker evaluates every active task from a source.
type Checker struct {
	cfg CheckerConfig
}

// NewChecker creates a checker. Source and Evaluator are required.
func NewChecker(cfg CheckerConfig) *Checker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Logger = cfg.Logger.With(observe.F("check", cfg.Name), observe.F("mode", cfg.Mode.String()))
	return &Checker{cfg: cfg}
}

// Name implements health.Checker.
func (c *Checker) Name() string {
	return c.cfg.Name
}

// Check implements health.Checker. A failing source or store makes the
// result unhealthy regardless of criticality.
func (c *Checker) Check(ctx context.Context) health.Result {
	tasks, err := c.cfg.Source.Tasks(ctx)
	if err != nil {
		c.cfg.Logger.Error(ctx, "listing periodic tasks failed", observe.F("error", err))
		return health.Unhealthy("task source unavailable", fmt.Errorf("list tasks: %w", err))
	}
	tasks = ActiveTasks(tasks)

	obs, err := c.observe(ctx, tasks)
	if err != nil {
		c.cfg.Logger.Error(ctx, "reading task observations failed", observe.F("error", err))
		return health.Unhealthy("observation store unavailable", err)
	}

	now := c.cfg.Now()
	verdicts := make([]health.Verdict, len(tasks))
	for i, task := range tasks {
		verdicts[i] = c.cfg.Evaluator.Evaluate(c.cfg.Mode, task, obs[i], now)
		if !verdicts[i].Healthy {
			c.logFailure(ctx, verdicts[i])
		}
	}

	return health.FromVerdicts(verdicts, c.cfg.Critical).WithDetails(map[string]any{
		"mode":  c.cfg.Mode.String(),
		"tasks": len(tasks),
	})
}

func (c *Checker) logFailure(ctx context.Context, v health.Verdict) {
	fields := []observe.Field{observe.F("task", v.EntityID), observe.F("reason", v.Reason)}
	if c.cfg.Critical {
		c.cfg.Logger.Error(ctx, "task overdue", fields...)
		return
	}
	c.cfg.Logger.Warn(ctx, "task overdue", fields...)
}

// observe reads the observation of every task that needs one.
func (c *Checker) observe(ctx context.Context, tasks []Task) ([]Observation, error) {
	out := make([]Observation, len(tasks))
	if c.cfg.Store == nil {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, task := range tasks {
		if !NeedsObservation(c.cfg.Mode, task) {
			continue
		}
		g.Go(func() error {
			return resilience.WithTimeout(gctx, c.cfg.ReadTimeout, func(ctx context.Context) error {
				at, ok, err := c.cfg.Store.Get(ctx, task.StoreKey())
				if err != nil {
					return err
				}
				if ok {
					out[i] = Observed(at)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

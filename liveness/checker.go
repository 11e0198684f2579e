package liveness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/store"
)

// DefaultTimeout is the default maximum age of an alive marker.
const DefaultTimeout = 30 * time.Second

// CheckerConfig configures a worker liveness check.
type CheckerConfig struct {
	// Name is the check name. Default: "workers"
	Name string

	Ready store.Store
	Alive store.Store

	// Timeout is the maximum age of an alive marker. Default: DefaultTimeout
	Timeout time.Duration

	Critical bool

	// ReadTimeout bounds each store call. Default: resilience.DefaultTimeout
	ReadTimeout time.Duration
	// Concurrency bounds parallel alive reads. Default: 8
	Concurrency int

	Logger observe.Logger
	Now    func() time.Time
}

// Checker evaluates every worker holding a ready marker.
type Checker struct {
	cfg CheckerConfig
}

// NewChecker creates a checker. Ready and Alive are required.
func NewChecker(cfg CheckerConfig) *Checker {
	if cfg.Name == "" {
		cfg.Name = "workers"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Logger = cfg.Logger.With(observe.F("check", cfg.Name))
	return &Checker{cfg: cfg}
}

// Name implements health.Checker.
func (c *Checker) Name() string {
	return c.cfg.Name
}

// Check implements health.Checker.
func (c *Checker) Check(ctx context.Context) health.Result {
	workers, err := c.workers(ctx)
	if err != nil {
		c.cfg.Logger.Error(ctx, "reading worker markers failed", observe.F("error", err))
		return health.Unhealthy("marker store unavailable", err)
	}

	verdicts := ClassifyAll(workers, c.cfg.Timeout, c.cfg.Now())
	for _, v := range verdicts {
		if v.Healthy {
			continue
		}
		if c.cfg.Critical {
			c.cfg.Logger.Error(ctx, "worker not alive", observe.F("worker", v.EntityID), observe.F("reason", v.Reason))
		} else {
			c.cfg.Logger.Warn(ctx, "worker not alive", observe.F("worker", v.EntityID), observe.F("reason", v.Reason))
		}
	}

	return health.FromVerdicts(verdicts, c.cfg.Critical).WithDetails(map[string]any{
		"workers": len(verdicts),
		"timeout": c.cfg.Timeout.String(),
	})
}

// workers lists ready workers with their alive markers. A ready marker that
// vanishes between listing and reading is simply reported as ready; the
// alive marker alone decides its verdict.
func (c *Checker) workers(ctx context.Context) ([]Worker, error) {
	var ids []string
	err := resilience.WithTimeout(ctx, c.cfg.ReadTimeout, func(ctx context.Context) error {
		var err error
		ids, err = c.cfg.Ready.Keys(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list ready markers: %w", err)
	}
	sort.Strings(ids)

	out := make([]Worker, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, id := range ids {
		out[i] = Worker{ID: id, Ready: true}
		g.Go(func() error {
			return resilience.WithTimeout(gctx, c.cfg.ReadTimeout, func(ctx context.Context) error {
				at, ok, err := c.cfg.Alive.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("read alive marker: %w", err)
				}
				if ok {
					out[i].Alive = at
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

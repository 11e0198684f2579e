package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RegistryConfig configures the check registry.
type RegistryConfig struct {
	// Timeout bounds a full CheckAll run and each single Check.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs checks concurrently when true.
	// Default: true
	Parallel bool
}

// Registry holds the named checks a process exposes. There is no global
// registry; the composition root builds one and passes it to the HTTP layer.
type Registry struct {
	config   RegistryConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
	flight   singleflight.Group
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(config ...RegistryConfig) *Registry {
	cfg := RegistryConfig{
		Timeout:  10 * time.Second,
		Parallel: true,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = 10 * time.Second
		}
	}

	return &Registry{
		config:   cfg,
		checkers: make(map[string]Checker),
		now:      time.Now,
	}
}

// Register adds a checker under name, replacing any previous one.
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checkers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.checkers[name] = checker
}

// Unregister removes a checker.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.checkers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns registered names in registration order.
func (r *Registry) CheckerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Check runs a single named check.
func (r *Registry) Check(ctx context.Context, name string) (Result, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	return r.runCheck(ctx, checker), nil
}

// CheckAll runs every registered check. Concurrent callers share one run.
func (r *Registry) CheckAll(ctx context.Context) map[string]Result {
	v, _, _ := r.flight.Do("all", func() (any, error) {
		// Detached so one caller going away does not fail the others.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.Timeout)
		defer cancel()
		return r.checkAll(runCtx), nil
	})
	shared := v.(map[string]Result)

	results := make(map[string]Result, len(shared))
	for k, res := range shared {
		results[k] = res
	}
	return results
}

func (r *Registry) checkAll(ctx context.Context) map[string]Result {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, checker := range r.checkers {
		checkers[name] = checker
	}
	r.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	if !r.config.Parallel {
		for name, checker := range checkers {
			results[name] = r.runCheck(ctx, checker)
		}
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, checker := range checkers {
		g.Go(func() error {
			result := r.runCheck(gctx, checker)
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// OverallStatus returns the worst status among results.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		if result.Status > overall {
			overall = result.Status
		}
	}
	return overall
}

func (r *Registry) runCheck(ctx context.Context, checker Checker) Result {
	start := r.now()
	resultCh := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = r.now().Sub(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  r.now().Sub(start),
			Timestamp: start,
		}
	}
}

// Checker exposes the whole registry as a single Checker.
func (r *Registry) Checker() Checker {
	return &registryChecker{reg: r}
}

type registryChecker struct {
	reg *Registry
}

func (c *registryChecker) Name() string {
	return "aggregate"
}

func (c *registryChecker) Check(ctx context.Context) Result {
	results := c.reg.CheckAll(ctx)
	status := OverallStatus(results)

	details := make(map[string]any, len(results))
	var verdicts []Verdict
	for name, result := range results {
		details[name] = map[string]any{
			"status":   result.Status.String(),
			"message":  result.Message,
			"duration": result.Duration.String(),
		}
		verdicts = append(verdicts, result.Verdicts...)
	}

	var message string
	switch status {
	case StatusHealthy:
		message = "all checks passed"
	case StatusDegraded:
		message = "some checks degraded"
	case StatusUnhealthy:
		message = "some checks failed"
	}

	return Result{
		Status:    status,
		Message:   message,
		Verdicts:  verdicts,
		Details:   details,
		Timestamp: c.reg.now(),
	}
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/store"
)

// DefaultFreq is the default time between flushes.
const DefaultFreq = 10 * time.Second

// CameraConfig configures a Camera.
type CameraConfig struct {
	Source EventSource
	Store  store.Store

	// Freq is the flush period. Default: DefaultFreq
	Freq time.Duration
	// WriteTimeout bounds each store write. Default: resilience.DefaultTimeout
	WriteTimeout time.Duration

	// Supervise controls how a failed source is restarted.
	Supervise resilience.SuperviseConfig

	Logger observe.Logger
	Now    func() time.Time
}

// Camera snapshots fleet events into a store.
type Camera struct {
	cfg CameraConfig

	mu      sync.Mutex
	events  int
	tasks   map[string]struct{}
	workers map[string]struct{}
}

// NewCamera creates a camera. Source and Store are required.
func NewCamera(cfg CameraConfig) *Camera {
	if cfg.Freq <= 0 {
		cfg.Freq = DefaultFreq
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Camera{
		cfg:     cfg,
		tasks:   make(map[string]struct{}),
		workers: make(map[string]struct{}),
	}
}

// Handle buffers ev. Events of unknown types are ignored.
func (c *Camera) Handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case EventTaskStarted:
		if ev.Name != "" {
			c.tasks[ev.Name] = struct{}{}
		}
	case EventWorkerHeartbeat, EventWorkerOnline:
	default:
		return
	}
	if ev.Hostname != "" {
		c.workers[ev.Hostname] = struct{}{}
	}
	c.events++
}

// Pending returns the number of events buffered since the last flush.
func (c *Camera) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.events
}

// Flush writes the current time for every buffered worker and task, then
// clears the buffer. It does nothing when no event arrived since the last
// flush. The buffer is cleared even if some writes fail.
func (c *Camera) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.events == 0 {
		c.mu.Unlock()
		return nil
	}
	workers := sortedKeys(c.workers)
	tasks := sortedKeys(c.tasks)
	c.events = 0
	c.workers = make(map[string]struct{})
	c.tasks = make(map[string]struct{})
	c.mu.Unlock()

	now := c.cfg.Now()
	var errs []error
	for _, key := range append(workers, tasks...) {
		err := resilience.WithTimeout(ctx, c.cfg.WriteTimeout, func(ctx context.Context) error {
			return c.cfg.Store.Set(ctx, key, now)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("monitor: record %s: %w", key, err))
		}
	}

	c.cfg.Logger.Debug(ctx, "camera flushed",
		observe.F("workers", len(workers)),
		observe.F("tasks", len(tasks)),
		observe.F("failed", len(errs)))
	return errors.Join(errs...)
}

// Run receives events and flushes them every Freq until ctx is done. A
// failing source is restarted per cfg.Supervise. Run flushes once more on
// exit and returns nil when ctx ended normally.
func (c *Camera) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.flushLoop(ctx)
	}()

	supervise := c.cfg.Supervise
	onRestart := supervise.OnRestart
	supervise.OnRestart = func(failures int, err error, delay time.Duration) {
		c.cfg.Logger.Warn(ctx, "event source failed, restarting",
			observe.F("failures", failures),
			observe.F("delay", delay.String()),
			observe.F("error", err))
		if onRestart != nil {
			onRestart(failures, err, delay)
		}
	}

	c.cfg.Logger.Info(ctx, "camera started", observe.F("freq", c.cfg.Freq.String()))
	err := resilience.Supervise(ctx, supervise, func(ctx context.Context) error {
		return c.cfg.Source.Receive(ctx, c.Handle)
	})
	wg.Wait()

	if ferr := c.Flush(context.WithoutCancel(ctx)); ferr != nil {
		c.cfg.Logger.Error(ctx, "final flush failed", observe.F("error", ferr))
	}
	c.cfg.Logger.Info(ctx, "camera stopped")

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (c *Camera) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.cfg.Logger.Error(ctx, "camera flush failed", observe.F("error", err))
			}
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

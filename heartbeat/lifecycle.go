package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/store"
)

// Lifecycle receives a worker's start and stop transitions.
type Lifecycle interface {
	// OnReady is called once the worker identified by id accepts work.
	OnReady(ctx context.Context, id string) error
	// OnShutdown is called when the worker stops cleanly.
	OnShutdown(ctx context.Context, id string) error
}

// LifecycleConfig configures a WorkerLifecycle.
type LifecycleConfig struct {
	// Ready receives a marker once per start.
	Ready store.Store
	// Alive is kept fresh by a Recorder while the worker runs.
	Alive store.Store

	Interval     time.Duration
	WriteTimeout time.Duration

	Logger  observe.Logger
	Metrics observe.Metrics
	Now     func() time.Time
}

// WorkerLifecycle writes the ready and alive markers evaluated by package
// liveness. One value may serve several worker ids.
type WorkerLifecycle struct {
	cfg LifecycleConfig

	mu        sync.Mutex
	recorders map[string]*Recorder
}

var _ Lifecycle = (*WorkerLifecycle)(nil)

// NewWorkerLifecycle creates a lifecycle over cfg's stores.
func NewWorkerLifecycle(cfg LifecycleConfig) *WorkerLifecycle {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WorkerLifecycle{
		cfg:       cfg,
		recorders: make(map[string]*Recorder),
	}
}

// OnReady sets the ready marker for id and starts its alive recorder. When
// the recorder cannot start the ready marker is removed again.
func (l *WorkerLifecycle) OnReady(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoEntityID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.recorders[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, id)
	}

	err := resilience.WithTimeout(ctx, l.cfg.WriteTimeout, func(ctx context.Context) error {
		return l.cfg.Ready.Set(ctx, id, l.cfg.Now())
	})
	if err != nil {
		return fmt.Errorf("heartbeat: set ready marker for %s: %w", id, err)
	}

	rec := NewRecorder(Config{
		EntityID:     id,
		Store:        l.cfg.Alive,
		Interval:     l.cfg.Interval,
		WriteTimeout: l.cfg.WriteTimeout,
		Logger:       l.cfg.Logger,
		Metrics:      l.cfg.Metrics,
		Now:          l.cfg.Now,
	})
	if err := rec.Start(ctx); err != nil {
		// A ready marker without an alive one reads as a dead worker.
		derr := resilience.WithTimeout(context.WithoutCancel(ctx), l.cfg.WriteTimeout, func(ctx context.Context) error {
			return l.cfg.Ready.Delete(ctx, id)
		})
		if derr != nil {
			derr = fmt.Errorf("heartbeat: delete ready marker for %s: %w", id, derr)
		}
		return errors.Join(err, derr)
	}
	l.recorders[id] = rec

	l.cfg.Logger.Info(ctx, "worker ready", observe.F("worker", id))
	return nil
}

// OnShutdown stops id's recorder, which deletes the alive marker, then
// deletes the ready marker. The ready marker is removed even when id was
// never started here.
func (l *WorkerLifecycle) OnShutdown(ctx context.Context, id string) error {
	l.mu.Lock()
	rec, ok := l.recorders[id]
	delete(l.recorders, id)
	l.mu.Unlock()

	var errs []error
	if ok {
		if err := rec.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: %s", ErrNotStarted, id))
	}

	err := resilience.WithTimeout(ctx, l.cfg.WriteTimeout, func(ctx context.Context) error {
		return l.cfg.Ready.Delete(ctx, id)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("heartbeat: delete ready marker for %s: %w", id, err))
	}

	l.cfg.Logger.Info(ctx, "worker shut down", observe.F("worker", id))
	return errors.Join(errs...)
}

// Running returns the ids with an active recorder.
func (l *WorkerLifecycle) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.recorders))
	for id := range l.recorders {
		ids = append(ids, id)
	}
	return ids
}

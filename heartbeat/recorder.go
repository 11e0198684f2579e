package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/store"
)

const (
	// DefaultInterval is the default time between writes.
	DefaultInterval = time.Second
	// DefaultWriteTimeout bounds each store call made by a recorder.
	DefaultWriteTimeout = 2 * time.Second
)

// Config configures a Recorder.
type Config struct {
	EntityID string
	Store    store.Store

	// Interval between writes. Default: DefaultInterval
	Interval time.Duration
	// WriteTimeout bounds each write and the final delete. Default: DefaultWriteTimeout
	WriteTimeout time.Duration

	Logger  observe.Logger
	Metrics observe.Metrics
	Now     func() time.Time
}

// Recorder periodically writes the current time for one entity.
//
// A stopped recorder can be started again.
type Recorder struct {
	cfg    Config
	logger observe.Logger

	mu       sync.Mutex
	started  bool
	starting bool
	stopCh   chan struct{}
	doneCh  chan struct{}
}

// NewRecorder creates a recorder. It does not write until Start.
func NewRecorder(cfg Config) *Recorder {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recorder{
		cfg:    cfg,
		logger: cfg.Logger.With(observe.F("entity", cfg.EntityID)),
	}
}

// EntityID returns the key the recorder writes.
func (r *Recorder) EntityID() string {
	return r.cfg.EntityID
}

// Interval returns the time between writes.
func (r *Recorder) Interval() time.Duration {
	return r.cfg.Interval
}

// IsStarted reports whether the recorder is running.
func (r *Recorder) IsStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.started
}

// Start writes the first heartbeat synchronously and then keeps writing in
// the background until Stop. If the first write fails the recorder is left
// stopped and the error is returned. The first write runs without holding
// the recorder's lock, so IsStarted and Stop do not wait on the store.
//
// ctx only bounds the first write; the background loop runs until Stop.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started || r.starting {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	if r.cfg.EntityID == "" {
		r.mu.Unlock()
		return ErrNoEntityID
	}
	r.starting = true
	r.mu.Unlock()

	err := r.write(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false
	if err != nil {
		return fmt.Errorf("heartbeat: initial write for %s: %w", r.cfg.EntityID, err)
	}

	r.started = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.loop(r.stopCh, r.doneCh)

	r.logger.Debug(ctx, "heartbeat started", observe.F("interval", r.cfg.Interval.String()))
	return nil
}

// Stop ends the background loop, waits for it, then deletes the entity's
// key. The recorder is stopped even when the delete fails.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.started = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	<-done

	err := resilience.WithTimeout(ctx, r.cfg.WriteTimeout, func(ctx context.Context) error {
		return r.cfg.Store.Delete(ctx, r.cfg.EntityID)
	})
	if err != nil {
		r.logger.Warn(ctx, "heartbeat cleanup failed", observe.F("error", err))
		return fmt.Errorf("heartbeat: stopped but failed to delete %s: %w", r.cfg.EntityID, err)
	}

	r.logger.Debug(ctx, "heartbeat stopped")
	return nil
}

func (r *Recorder) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Detached from Start's context: the loop lives until Stop.
			if err := r.write(context.Background()); err != nil {
				r.logger.Warn(context.Background(), "heartbeat write failed", observe.F("error", err))
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context) error {
	err := resilience.WithTimeout(ctx, r.cfg.WriteTimeout, func(ctx context.Context) error {
		return r.cfg.Store.Set(ctx, r.cfg.EntityID, r.cfg.Now())
	})
	r.cfg.Metrics.RecordHeartbeat(ctx, r.cfg.EntityID, err)
	return err
}

package resilience

import (
	"context"
	"time"
)

// SuperviseConfig configures Supervise.
type SuperviseConfig struct {
	// Backoff spaces restarts after consecutive failures.
	Backoff Backoff

	// StableAfter resets the failure streak when a run lasted at least this long.
	// Default: 1 minute
	StableAfter time.Duration

	// OnRestart is called before waiting to restart a failed run.
	OnRestart func(failures int, err error, delay time.Duration)

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// Supervise keeps run going until ctx is done. A run that returns is
// restarted after a backoff that grows with consecutive failures. Supervise
// returns ctx.Err() once ctx is done.
func Supervise(ctx context.Context, config SuperviseConfig, run func(context.Context) error) error {
	if config.StableAfter <= 0 {
		config.StableAfter = time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	failures := 0
	for {
		started := config.Now()
		err := run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if config.Now().Sub(started) >= config.StableAfter {
			failures = 0
		}
		failures++

		delay := config.Backoff.Delay(failures)
		if config.OnRestart != nil {
			config.OnRestart(failures, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

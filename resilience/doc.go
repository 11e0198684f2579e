// Package resilience bounds and retries calls to external dependencies.
//
// Every blocking call fleetwatch makes (store round-trips, NATS probes, the
// event stream) goes through one of these policies so it fails closed:
//
//   - WithTimeout puts a deadline on a single call and reports
//     overruns as ErrTimeout.
//   - Retry re-runs a call with Backoff and reports exhaustion as
//     ErrMaxRetriesExceeded.
//   - CircuitBreaker stops calling a dependency after consecutive failures
//     and answers ErrCircuitOpen until a trial call succeeds.
//   - Supervise keeps a long-running loop alive, restarting it with backoff.
//
// Example:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  3,
//	    ResetTimeout: 30 * time.Second,
//	})
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return resilience.WithTimeout(ctx, 2*time.Second, probe)
//	})
package resilience

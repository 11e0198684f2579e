package observe

import (
	"context"
	"time"
)

// Outcome is what an observed check run reports back.
type Outcome struct {
	Status string // healthy|degraded|unhealthy
	Failed int    // unhealthy entities
	Err    error  // set when the check could not reach a verdict
}

// Middleware wraps check runs with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: the span context is passed to fn.
//   - Errors: the Outcome from fn is returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Observe runs fn inside a span and records its outcome.
func (m *Middleware) Observe(ctx context.Context, meta CheckMeta, fn func(ctx context.Context) Outcome) Outcome {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := m.now()

	out := fn(ctx)

	duration := m.now().Sub(start)
	m.tracer.EndSpan(span, out.Status, out.Err)
	m.metrics.RecordCheck(ctx, meta, out.Status, out.Failed, duration, out.Err)

	log := m.logger.With(F("check", meta.Name))
	fields := []Field{
		F("status", out.Status),
		F("duration_ms", float64(duration.Microseconds())/1000),
	}
	if out.Failed > 0 {
		fields = append(fields, F("unhealthy_entities", out.Failed))
	}

	switch {
	case out.Err != nil:
		log.Error(ctx, "health check failed", append(fields, F("error", out.Err))...)
	case out.Failed > 0:
		log.Warn(ctx, "health check reported unhealthy entities", fields...)
	default:
		log.Debug(ctx, "health check completed", fields...)
	}

	return out
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricCheckTotal        = "fleetwatch.check.total"
	MetricCheckErrors       = "fleetwatch.check.errors"
	MetricCheckDuration     = "fleetwatch.check.duration_ms"
	MetricUnhealthyEntities = "fleetwatch.check.unhealthy_entities"
	MetricHeartbeatWrites   = "fleetwatch.heartbeat.writes"
	MetricHeartbeatFailures = "fleetwatch.heartbeat.failures"
)

// Metrics records check and heartbeat metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCheck records one check run. failed is the number of unhealthy
	// entities it reported; err is set when the check could not decide.
	RecordCheck(ctx context.Context, meta CheckMeta, status string, failed int, duration time.Duration, err error)

	// RecordHeartbeat records one heartbeat write for entity.
	RecordHeartbeat(ctx context.Context, entity string, err error)
}

type metricsImpl struct {
	checkTotal    metric.Int64Counter
	checkErrors   metric.Int64Counter
	checkDuration metric.Float64Histogram
	unhealthy     metric.Int64Counter
	beatWrites    metric.Int64Counter
	beatFailures  metric.Int64Counter
}

// NewMetrics creates the metric instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.checkTotal, err = meter.Int64Counter(MetricCheckTotal,
		metric.WithDescription("Total number of health check runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if m.checkErrors, err = meter.Int64Counter(MetricCheckErrors,
		metric.WithDescription("Health check runs that could not reach a verdict"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.checkDuration, err = meter.Float64Histogram(MetricCheckDuration,
		metric.WithDescription("Health check duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.unhealthy, err = meter.Int64Counter(MetricUnhealthyEntities,
		metric.WithDescription("Unhealthy entities reported by health checks"),
		metric.WithUnit("{entity}"),
	); err != nil {
		return nil, err
	}
	if m.beatWrites, err = meter.Int64Counter(MetricHeartbeatWrites,
		metric.WithDescription("Heartbeat timestamp writes"),
		metric.WithUnit("{write}"),
	); err != nil {
		return nil, err
	}
	if m.beatFailures, err = meter.Int64Counter(MetricHeartbeatFailures,
		metric.WithDescription("Heartbeat timestamp writes that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordCheck(ctx context.Context, meta CheckMeta, status string, failed int, duration time.Duration, err error) {
	opt := metric.WithAttributes(append(meta.attributes(), attribute.String("check.status", status))...)

	m.checkTotal.Add(ctx, 1, opt)
	if err != nil {
		m.checkErrors.Add(ctx, 1, opt)
	}
	if failed > 0 {
		m.unhealthy.Add(ctx, int64(failed), opt)
	}
	m.checkDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordHeartbeat(ctx context.Context, entity string, err error) {
	opt := metric.WithAttributes(attribute.String("entity.id", entity))
	m.beatWrites.Add(ctx, 1, opt)
	if err != nil {
		m.beatFailures.Add(ctx, 1, opt)
	}
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) RecordCheck(context.Context, CheckMeta, string, int, time.Duration, error) {}
func (nopMetrics) RecordHeartbeat(context.Context, string, error)                            {}

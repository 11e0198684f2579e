// Package observe provides logging, metrics and tracing for health checks and
// heartbeat writers.
//
// Logging is structured and backed by zap. Metrics and traces use
// OpenTelemetry; exporters are chosen by name (stdout, otlp, prometheus, none)
// through Config. Components accept the Logger and Metrics interfaces and
// default to no-op implementations, so instrumentation is always optional.
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "fleetwatch",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	mw, err := observe.MiddlewareFromObserver(obs)
package observe

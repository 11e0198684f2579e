package exporters

import (
	"bytes"
	"context"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// TestExporter_InvalidName verifies unknown exporter names are rejected.
func TestExporter_InvalidName(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "jaeger", Options{})
	if err == nil {
		t.Fatal("expected error for unsupported exporter name")
	}
	if !strings.Contains(err.Error(), "unknown exporter") {
		t.Errorf("expected 'unknown exporter' in error, got: %v", err)
	}

	_, err = NewMetricsReader(context.Background(), "statsd", Options{})
	if err == nil {
		t.Fatal("expected error for unsupported metrics exporter")
	}
}

// TestExporter_StdoutTracing verifies the stdout span exporter honors the writer.
func TestExporter_StdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewTracingExporter(context.Background(), "stdout", Options{Writer: &buf})
	if err != nil {
		t.Fatalf("stdout tracing exporter: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
	_ = exp.Shutdown(context.Background())
}

// TestExporter_StdoutMetrics verifies the stdout metric reader.
func TestExporter_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	reader, err := NewMetricsReader(context.Background(), "stdout", Options{Writer: &buf})
	if err != nil {
		t.Fatalf("stdout metrics reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
}

// TestExporter_OtlpMissingEndpoint verifies OTLP requires an endpoint.
func TestExporter_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), "otlp", Options{}); err == nil {
		t.Fatal("expected error when trace endpoint is unset")
	}
	if _, err := NewMetricsReader(context.Background(), "otlp", Options{}); err == nil {
		t.Fatal("expected error when metrics endpoint is unset")
	}
}

// TestExporter_PrometheusRegisterer verifies the collector lands in the given registry.
func TestExporter_PrometheusRegisterer(t *testing.T) {
	reg := promclient.NewRegistry()
	reader, err := NewMetricsReader(context.Background(), "prometheus", Options{Registerer: reg})
	if err != nil {
		t.Fatalf("prometheus reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
	if _, err := reg.Gather(); err != nil {
		t.Errorf("gather: %v", err)
	}
}

// TestExporter_None verifies the none exporters succeed.
func TestExporter_None(t *testing.T) {
	if _, err := NewTracingExporter(context.Background(), "none", Options{}); err != nil {
		t.Errorf("none tracing: %v", err)
	}
	if _, err := NewMetricsReader(context.Background(), "", Options{}); err != nil {
		t.Errorf("none metrics: %v", err)
	}
}

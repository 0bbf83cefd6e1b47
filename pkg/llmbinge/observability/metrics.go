package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records llmbinge metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordGeneration records a finished generation. Outcome is one of
	// "done", "errored" or "aborted".
	RecordGeneration(ctx context.Context, kind, outcome string, duration time.Duration)

	// RecordTokens records streamed tokens.
	RecordTokens(ctx context.Context, kind string, n int)

	// RecordFlush records a persistence flush of streaming content.
	RecordFlush(ctx context.Context, sizeBytes int, err error)

	// RecordStorageOp records a storage call made by the session manager.
	RecordStorageOp(ctx context.Context, op string, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	generations       metric.Int64Counter
	generationLatency metric.Float64Histogram
	tokens            metric.Int64Counter
	flushes           metric.Int64Counter
	flushSize         metric.Int64Histogram
	flushErrors       metric.Int64Counter
	storageOps        metric.Int64Counter
	storageLatency    metric.Float64Histogram
	storageErrors     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("llmbinge"))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	var (
		m   otelMetrics
		err error
	)

	if m.generations, err = meter.Int64Counter("llmbinge.generation.count",
		metric.WithDescription("Number of finished generations"),
	); err != nil {
		return nil, err
	}
	if m.generationLatency, err = meter.Float64Histogram("llmbinge.generation.latency_ms",
		metric.WithDescription("Generation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.tokens, err = meter.Int64Counter("llmbinge.generation.tokens",
		metric.WithDescription("Number of streamed tokens"),
	); err != nil {
		return nil, err
	}
	if m.flushes, err = meter.Int64Counter("llmbinge.flush.count",
		metric.WithDescription("Number of content flushes"),
	); err != nil {
		return nil, err
	}
	if m.flushSize, err = meter.Int64Histogram("llmbinge.flush.size_bytes",
		metric.WithDescription("Flushed content size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.flushErrors, err = meter.Int64Counter("llmbinge.flush.errors",
		metric.WithDescription("Number of failed content flushes"),
	); err != nil {
		return nil, err
	}
	if m.storageOps, err = meter.Int64Counter("llmbinge.storage.ops",
		metric.WithDescription("Number of storage operations"),
	); err != nil {
		return nil, err
	}
	if m.storageLatency, err = meter.Float64Histogram("llmbinge.storage.latency_ms",
		metric.WithDescription("Storage operation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.storageErrors, err = meter.Int64Counter("llmbinge.storage.errors",
		metric.WithDescription("Number of failed storage operations"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderWithMeter returns a recorder bound to a specific meter.
func NewMetricsRecorderWithMeter(meter metric.Meter) (MetricsRecorder, error) {
	return newOtelMetrics(meter)
}

// RecordGeneration implements MetricsRecorder.
func (m *otelMetrics) RecordGeneration(ctx context.Context, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.generations.Add(ctx, 1, attrs)
	m.generationLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTokens implements MetricsRecorder.
func (m *otelMetrics) RecordTokens(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	m.tokens.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordFlush implements MetricsRecorder.
func (m *otelMetrics) RecordFlush(ctx context.Context, sizeBytes int, err error) {
	m.flushes.Add(ctx, 1)
	m.flushSize.Record(ctx, int64(sizeBytes))
	if err != nil {
		m.flushErrors.Add(ctx, 1)
	}
}

// RecordStorageOp implements MetricsRecorder.
func (m *otelMetrics) RecordStorageOp(ctx context.Context, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.storageOps.Add(ctx, 1, attrs)
	m.storageLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.storageErrors.Add(ctx, 1, attrs)
	}
}

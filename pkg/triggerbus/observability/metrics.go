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

// MetricsRecorder records triggerbus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one Trigger call.
	RecordDispatch(ctx context.Context, event string, duration time.Duration, rewrites int, stopped bool, err error)

	// RecordTriggermanCall records one call through a triggerman.
	RecordTriggermanCall(ctx context.Context, triggerman string, duration time.Duration, skipped bool, err error)
}

type otelMetrics struct {
	dispatches     metric.Int64Counter
	dispatchErrors metric.Int64Counter
	stops          metric.Int64Counter
	rewrites       metric.Int64Counter
	latency        metric.Float64Histogram
	calls          metric.Int64Counter
	callLatency    metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("triggerbus")

	dispatches, err := meter.Int64Counter("triggerbus.dispatch.count",
		metric.WithDescription("Number of event dispatches"),
	)
	if err != nil {
		return nil, err
	}

	dispatchErrors, err := meter.Int64Counter("triggerbus.dispatch.errors",
		metric.WithDescription("Number of dispatches aborted by a callback error"),
	)
	if err != nil {
		return nil, err
	}

	stops, err := meter.Int64Counter("triggerbus.dispatch.stops",
		metric.WithDescription("Number of dispatches halted by StopExecution"),
	)
	if err != nil {
		return nil, err
	}

	rewrites, err := meter.Int64Counter("triggerbus.payload.rewrites",
		metric.WithDescription("Number of payload rewrites by callbacks"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("triggerbus.dispatch.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	calls, err := meter.Int64Counter("triggerbus.triggerman.calls",
		metric.WithDescription("Number of triggerman invocations"),
	)
	if err != nil {
		return nil, err
	}

	callLatency, err := meter.Float64Histogram("triggerbus.triggerman.latency_ms",
		metric.WithDescription("Triggerman call latency in milliseconds, pre and post included"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:     dispatches,
		dispatchErrors: dispatchErrors,
		stops:          stops,
		rewrites:       rewrites,
		latency:        latency,
		calls:          calls,
		callLatency:    callLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder if instrument creation fails.
//
// Configure the provider first:
//
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

// RecordDispatch records one dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, event string, duration time.Duration, rewrites int, stopped bool, err error) {
	attrs := metric.WithAttributes(attribute.String("event", event))

	m.dispatches.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)

	if rewrites > 0 {
		m.rewrites.Add(ctx, int64(rewrites), attrs)
	}
	if stopped {
		m.stops.Add(ctx, 1, attrs)
	}
	if err != nil {
		m.dispatchErrors.Add(ctx, 1, attrs)
	}
}

// RecordTriggermanCall records one triggerman invocation.
func (m *otelMetrics) RecordTriggermanCall(ctx context.Context, triggerman string, duration time.Duration, skipped bool, err error) {
	attrs := metric.WithAttributes(
		attribute.String("triggerman", triggerman),
		attribute.Bool("skipped", skipped),
		attribute.Bool("success", err == nil),
	)
	m.calls.Add(ctx, 1, attrs)
	m.callLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

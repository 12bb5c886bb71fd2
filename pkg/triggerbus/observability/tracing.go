package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("triggerbus")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span covering one Trigger call.
	StartDispatchSpan(ctx context.Context, event, dispatchID string, depth int) (context.Context, trace.Span)

	// StartCallSpan starts a span covering one triggerman call.
	// Dispatch spans for its pre and post events become children.
	StartCallSpan(ctx context.Context, triggerman string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager using the global OTel tracer provider.
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return otelSpanManager{}
}

func (otelSpanManager) StartDispatchSpan(ctx context.Context, event, dispatchID string, depth int) (context.Context, trace.Span) {
	return StartDispatchSpan(ctx, event, dispatchID, depth)
}

func (otelSpanManager) StartCallSpan(ctx context.Context, triggerman string) (context.Context, trace.Span) {
	return StartCallSpan(ctx, triggerman)
}

func (otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartDispatchSpan starts a dispatch span on the global tracer.
func StartDispatchSpan(ctx context.Context, event, dispatchID string, depth int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "triggerbus.dispatch",
		trace.WithAttributes(
			attribute.String("event.name", event),
			attribute.String("dispatch.id", dispatchID),
			attribute.Int("dispatch.depth", depth),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartCallSpan starts a triggerman call span on the global tracer.
func StartCallSpan(ctx context.Context, triggerman string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "triggerbus.call."+triggerman,
		trace.WithAttributes(
			attribute.String("triggerman.name", triggerman),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the recording span in ctx, if any.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

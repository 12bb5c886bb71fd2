// Package observability provides logging, metrics, and tracing for
// triggerbus dispatches and triggerman calls.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Every helper accepts a nil logger and every interface has a no-op
// implementation, so a bus built without options pays almost nothing.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds dispatch context to a logger.
//
// Example:
//
//	l := EnrichLogger(logger, "Cart.checkout.pre-exec", dispatchID, 1)
//	l.Info("rewriting basket") // includes event, dispatch_id, depth
func EnrichLogger(logger *slog.Logger, event, dispatchID string, depth int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event", event),
		slog.String("dispatch_id", dispatchID),
		slog.Int("depth", depth),
	)
}

// LogEventRegistered logs a new event entry.
func LogEventRegistered(logger *slog.Logger, event, owner string) {
	if logger == nil {
		return
	}
	logger.Debug("event registered",
		slog.String("event", event),
		slog.String("owner", owner),
	)
}

// LogSubscribed logs a callback attached to an event.
func LogSubscribed(logger *slog.Logger, event, callback string, position int) {
	if logger == nil {
		return
	}
	logger.Debug("callback subscribed",
		slog.String("event", event),
		slog.String("callback", callback),
		slog.Int("position", position),
	)
}

// LogDispatchStart logs the start of a dispatch.
func LogDispatchStart(logger *slog.Logger, event, dispatchID string, subscribers int) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch starting",
		slog.String("event", event),
		slog.String("dispatch_id", dispatchID),
		slog.Int("subscribers", subscribers),
	)
}

// LogDispatchComplete logs a dispatch that ran to completion or was stopped.
func LogDispatchComplete(logger *slog.Logger, event, dispatchID string, durationMs float64, rewrites int, stopped bool) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch completed",
		slog.String("event", event),
		slog.String("dispatch_id", dispatchID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("rewrites", rewrites),
		slog.Bool("stopped", stopped),
	)
}

// LogDispatchError logs a dispatch aborted by a failing callback.
func LogDispatchError(logger *slog.Logger, event, dispatchID string, err error, durationMs float64, callback string) {
	if logger == nil {
		return
	}
	logger.Error("dispatch failed",
		slog.String("event", event),
		slog.String("dispatch_id", dispatchID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("callback", callback),
	)
}

// LogCallback logs one subscriber invocation.
func LogCallback(logger *slog.Logger, event, callback string, index int, outcome string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("event", event),
		slog.String("callback", callback),
		slog.Int("index", index),
		slog.Float64("duration_ms", durationMs),
	}
	if err != nil {
		logger.Debug("callback failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	logger.Debug("callback completed", append(attrs, slog.String("outcome", outcome))...)
}

// LogTriggermanSkip logs a wrapped call skipped by a pre-event stop.
func LogTriggermanSkip(logger *slog.Logger, triggerman string, triggerPost bool) {
	if logger == nil {
		return
	}
	logger.Debug("call skipped by pre-exec stop",
		slog.String("triggerman", triggerman),
		slog.Bool("trigger_post", triggerPost),
	)
}

// LogJournalError logs a journal failure. Never fatal to the dispatch.
func LogJournalError(logger *slog.Logger, event, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("event", event),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a function reporting elapsed milliseconds.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}

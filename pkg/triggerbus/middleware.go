package triggerbus

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus/observability"
)

// Middleware wraps a callback. Install with Bus.Use or WithMiddleware.
type Middleware func(next Callback) Callback

// RecoveryMiddleware converts a panicking callback into a *PanicError,
// which then aborts the dispatch like any other callback error.
func RecoveryMiddleware() Middleware {
	return func(next Callback) Callback {
		return func(ctx context.Context, p Payload) (out Outcome, err error) {
			defer func() {
				if r := recover(); r != nil {
					info, _ := DispatchInfoFromContext(ctx)
					out = Continue()
					err = &PanicError{
						Event:    info.Event,
						Callback: info.Callback,
						Value:    r,
						Stack:    string(debug.Stack()),
					}
				}
			}()
			return next(ctx, p)
		}
	}
}

// LoggingMiddleware logs every callback invocation at debug level with its
// outcome and duration. A nil logger yields a pass-through middleware.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Callback) Callback {
		if logger == nil {
			return next
		}
		return func(ctx context.Context, p Payload) (Outcome, error) {
			done := observability.TimedOperation()
			out, err := next(ctx, p)
			info, _ := DispatchInfoFromContext(ctx)
			observability.LogCallback(logger, info.Event, info.Callback, info.Index, out.String(), done(), err)
			return out, err
		}
	}
}

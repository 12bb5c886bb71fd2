package triggerbus

import "context"

// contextKey is the type for context keys to avoid collisions.
type contextKey string

const dispatchKey contextKey = "triggerbus_dispatch"

// DispatchInfo describes the dispatch a callback is running in.
type DispatchInfo struct {
	// Event is the event being dispatched.
	Event string
	// DispatchID uniquely identifies this Trigger call.
	DispatchID string
	// Depth is 1 for a top-level dispatch and grows with each nested Trigger.
	Depth int
	// Callback is the name of the subscriber the context was handed to.
	Callback string
	// Index is that subscriber's position in the chain.
	Index int
}

// DispatchInfoFromContext returns the dispatch a callback is running in.
// ok is false outside a dispatch. The value is fixed per callback and stays
// valid after the callback returns.
func DispatchInfoFromContext(ctx context.Context) (DispatchInfo, bool) {
	info, ok := ctx.Value(dispatchKey).(DispatchInfo)
	return info, ok
}

// dispatchDepth returns the depth of the enclosing dispatch, 0 at top level.
func dispatchDepth(ctx context.Context) int {
	if info, ok := ctx.Value(dispatchKey).(DispatchInfo); ok {
		return info.Depth
	}
	return 0
}

func withDispatch(ctx context.Context, info DispatchInfo) context.Context {
	return context.WithValue(ctx, dispatchKey, info)
}

// Package triggerbus provides an in-process event bus with pre/post
// interception and mid-flight payload rewriting.
//
// # Overview
//
// A Bus holds named events. Subscribers attach to an event with On and run
// in registration order whenever the event is triggered. Each subscriber
// returns an Outcome:
//
//   - Continue leaves the payload as is
//   - ModifyPayload replaces the payload seen by later subscribers
//   - StopExecution ends the dispatch and hands a result back
//
// Errors returned by subscribers abort the dispatch and reach the caller
// wrapped in a *CallbackError.
//
// # Basic Usage
//
//	bus := triggerbus.NewBus()
//	bus.MustRegisterEvent("user.signup")
//
//	bus.On("user.signup", func(ctx context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
//	    email, err := triggerbus.Arg[string](p, 0)
//	    if err != nil {
//	        return triggerbus.Continue(), err
//	    }
//	    return triggerbus.ModifyPayload(strings.ToLower(email)), nil
//	})
//
//	res, err := bus.Trigger(ctx, "user.signup", "Alice@Example.com")
//	// res.Payload[0] == "alice@example.com"
//
// # Triggermen
//
// A Triggerman brackets a function with two events. Subscribers of the pre
// event can rewrite the arguments or skip the call; subscribers of the post
// event can rewrite the result:
//
//	add, tm, err := triggerbus.Wrap(bus, "Math.add",
//	    func(ctx context.Context, in [2]int) (int, error) {
//	        return in[0] + in[1], nil
//	    })
//	// events "Math.add.pre-exec" and "Math.add.post-exec" now exist
//
// NewTriggerman is the untyped form taking positional and keyword
// arguments.
//
// # Concurrency
//
// Dispatch is synchronous: subscribers run in the goroutine that called
// Trigger, one after another. The event table is safe for concurrent use,
// and callbacks may register events, subscribe or trigger other events
// while a dispatch is running. Nested dispatches are limited by
// WithMaxDepth.
//
// # Observability
//
// WithLogger enables slog output. WithMetrics and WithTracing turn on
// OpenTelemetry instruments and spans. WithJournal records one
// journal.Entry per dispatch.
package triggerbus

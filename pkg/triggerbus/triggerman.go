package triggerbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus/observability"
)

// Suffixes appended to a triggerman's name to derive its event names.
const (
	PreExecSuffix  = ".pre-exec"
	PostExecSuffix = ".post-exec"
)

// errNilBus indicates NewTriggerman or Wrap was given a nil bus.
var errNilBus = errors.New("bus cannot be nil")

// Args are a triggerman call's positional arguments.
type Args []any

// Kwargs are a triggerman call's keyword arguments.
type Kwargs map[string]any

// Func is the function signature a Triggerman wraps.
type Func func(ctx context.Context, args Args, kwargs Kwargs) (any, error)

// triggermanConfig holds NewTriggerman options.
type triggermanConfig struct {
	pre, post       string
	noPre, noPost   bool
	preSet, postSet bool
}

// TriggermanOption configures NewTriggerman and Wrap.
type TriggermanOption func(*triggermanConfig)

// WithPreEvent binds the pre event to an existing event instead of
// registering "<name>.pre-exec".
func WithPreEvent(name string) TriggermanOption {
	return func(c *triggermanConfig) {
		c.pre = name
		c.preSet = true
		c.noPre = false
	}
}

// WithPostEvent binds the post event to an existing event instead of
// registering "<name>.post-exec".
func WithPostEvent(name string) TriggermanOption {
	return func(c *triggermanConfig) {
		c.post = name
		c.postSet = true
		c.noPost = false
	}
}

// WithoutPre disables the pre event.
func WithoutPre() TriggermanOption {
	return func(c *triggermanConfig) {
		c.noPre = true
		c.preSet = false
	}
}

// WithoutPost disables the post event.
func WithoutPost() TriggermanOption {
	return func(c *triggermanConfig) {
		c.noPost = true
		c.postSet = false
	}
}

// Triggerman wraps a function so every call is bracketed by a pre and a
// post event.
//
// Pre subscribers receive (Args, Kwargs). They may rewrite the arguments
// with ModifyPayload or skip the call with StopExecution. Post subscribers
// receive (Args, Kwargs, result) and may rewrite the result, which is
// always the last payload element.
//
// A Triggerman is immutable and safe for concurrent use.
type Triggerman struct {
	bus  *Bus
	name string
	fn   Func
	pre  string
	post string
}

// NewTriggerman wraps fn under the qualified name, conventionally
// "<Type>.<method>".
//
// Unless overridden, it registers "<name>.pre-exec" and "<name>.post-exec"
// owned by name, both or neither; a collision with an existing event fails
// with ErrDuplicateEvent. Events named with WithPreEvent or WithPostEvent must
// already be registered.
//
// Example:
//
//	tm, err := triggerbus.NewTriggerman(bus, "Cart.checkout", checkout)
//	// subscribers attach to "Cart.checkout.pre-exec" / ".post-exec"
//	total, err := tm.Call(ctx, triggerbus.Args{cart}, nil)
func NewTriggerman(bus *Bus, name string, fn Func, opts ...TriggermanOption) (*Triggerman, error) {
	if bus == nil {
		return nil, fmt.Errorf("triggerman %q: %w", name, errNilBus)
	}
	if name == "" {
		return nil, &EventError{Op: "triggerman", Err: ErrEmptyEventName}
	}
	if fn == nil {
		return nil, fmt.Errorf("triggerman %q: %w", name, ErrNilFunc)
	}

	var cfg triggermanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	tm := &Triggerman{bus: bus, name: name, fn: fn}

	// Resolve everything before registering anything, so a bad option
	// leaves the registry untouched.
	derive := make(map[string][]EventOption, 2)
	if !cfg.noPre {
		if cfg.preSet {
			if err := bus.validate("triggerman", cfg.pre); err != nil {
				return nil, err
			}
			tm.pre = cfg.pre
		} else {
			tm.pre = name + PreExecSuffix
			derive[tm.pre] = []EventOption{WithOwner(name), WithDescription("fires before " + name)}
		}
	}
	if !cfg.noPost {
		if cfg.postSet {
			if err := bus.validate("triggerman", cfg.post); err != nil {
				return nil, err
			}
			tm.post = cfg.post
		} else {
			tm.post = name + PostExecSuffix
			derive[tm.post] = []EventOption{WithOwner(name), WithDescription("fires after " + name)}
		}
	}

	if len(derive) > 0 {
		if err := bus.registerEvents(derive); err != nil {
			return nil, err
		}
	}

	return tm, nil
}

// Name returns the qualified name.
func (t *Triggerman) Name() string { return t.name }

// PreEvent returns the pre event name, or "" if disabled.
func (t *Triggerman) PreEvent() string { return t.pre }

// PostEvent returns the post event name, or "" if disabled.
func (t *Triggerman) PostEvent() string { return t.post }

// Func returns Call as a Func, a drop-in replacement for the wrapped function.
func (t *Triggerman) Func() Func { return t.Call }

// Call runs the wrapped function between its pre and post events.
//
// Call flow:
//  1. Trigger the pre event with (args, kwargs). A stop skips the function
//     and, unless it asked for the post event, returns its result. The
//     payload of a stopped pre dispatch is never unpacked.
//  2. Call the function with the possibly rewritten arguments. An error is
//     returned as is and the post event does not fire.
//  3. Trigger the post event with (args, kwargs, result). The last payload
//     element becomes the result. A stop returns its result at once.
//
// StopExecution and ModifyPayload never surface as errors. Subscriber
// errors are returned as *CallbackError.
func (t *Triggerman) Call(ctx context.Context, args Args, kwargs Kwargs) (result any, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("triggerman %q: %w", t.name, ErrNilContext)
	}

	cfg := &t.bus.cfg
	start := time.Now()
	skipped := false

	ctx, span := cfg.spans.StartCallSpan(ctx, t.name)
	defer func() {
		cfg.metrics.RecordTriggermanCall(ctx, t.name, time.Since(start), skipped, err)
		cfg.spans.EndSpanWithError(span, err)
	}()

	var (
		stopped     bool
		triggerPost bool
	)

	if t.pre != "" {
		res, err := t.bus.Trigger(ctx, t.pre, args, kwargs)
		if err != nil {
			return nil, err
		}
		if res.Stopped {
			// The stopping chain's rewrites are discarded; post sees the
			// caller's arguments.
			stopped = true
			result = res.Value
			triggerPost = res.TriggerPost
		} else {
			args, kwargs, err = unpackCall(t.pre, res.Payload)
			if err != nil {
				return nil, err
			}
		}
	}

	if stopped {
		skipped = true
		observability.LogTriggermanSkip(cfg.logger, t.name, triggerPost)
		if !triggerPost {
			return result, nil
		}
	} else {
		result, err = t.fn(ctx, args, kwargs)
		if err != nil {
			return nil, err
		}
	}

	if t.post != "" {
		res, err := t.bus.Trigger(ctx, t.post, args, kwargs, result)
		if err != nil {
			return nil, err
		}
		if res.Stopped {
			return res.Value, nil
		}
		if len(res.Payload) == 0 {
			return nil, &PayloadTypeError{Event: t.post, Index: 0, Want: "result", Got: "missing"}
		}
		result = res.Payload[len(res.Payload)-1]
	}

	return result, nil
}

// unpackCall reads (Args, Kwargs) from the first two payload elements.
// Plain []any and map[string]any are accepted so subscribers can rewrite
// arguments without naming the bus types.
func unpackCall(event string, p Payload) (Args, Kwargs, error) {
	if len(p) < 2 {
		return nil, nil, &PayloadTypeError{Event: event, Index: len(p), Want: "triggerbus.Args, triggerbus.Kwargs", Got: "missing"}
	}

	var args Args
	switch v := p[0].(type) {
	case Args:
		args = v
	case []any:
		args = Args(v)
	case nil:
	default:
		return nil, nil, &PayloadTypeError{Event: event, Index: 0, Want: "triggerbus.Args", Got: fmt.Sprintf("%T", v)}
	}

	var kwargs Kwargs
	switch v := p[1].(type) {
	case Kwargs:
		kwargs = v
	case map[string]any:
		kwargs = Kwargs(v)
	case nil:
	default:
		return nil, nil, &PayloadTypeError{Event: event, Index: 1, Want: "triggerbus.Kwargs", Got: fmt.Sprintf("%T", v)}
	}

	return args, kwargs, nil
}

package triggerbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Wrap is the typed form of NewTriggerman for single-input functions.
//
// The returned function has fn's signature. Pre subscribers see
// (Args{in}, Kwargs(nil)); post subscribers see (Args{in}, nil, out).
// Rewrites that break the types, and stop results that are not an Out,
// fail with a *PayloadTypeError. A nil result yields the zero Out.
//
// Example:
//
//	price, tm, err := triggerbus.Wrap(bus, "Pricing.quote",
//	    func(ctx context.Context, sku string) (float64, error) {
//	        return lookup(sku), nil
//	    })
//	bus.On(tm.PostEvent(), applyDiscount)
//	p, err := price(ctx, "sku-1")
func Wrap[In, Out any](bus *Bus, name string, fn func(context.Context, In) (Out, error), opts ...TriggermanOption) (func(context.Context, In) (Out, error), *Triggerman, error) {
	if fn == nil {
		return nil, nil, fmt.Errorf("triggerman %q: %w", name, ErrNilFunc)
	}

	var tm *Triggerman
	inner := func(ctx context.Context, args Args, _ Kwargs) (any, error) {
		in, err := Arg[In](Payload(args), 0)
		if err != nil {
			var pte *PayloadTypeError
			if errors.As(err, &pte) {
				pte.Event = tm.pre
			}
			return nil, err
		}
		return fn(ctx, in)
	}

	tm, err := NewTriggerman(bus, name, inner, opts...)
	if err != nil {
		return nil, nil, err
	}

	typed := func(ctx context.Context, in In) (Out, error) {
		var zero Out
		v, err := tm.Call(ctx, Args{in}, nil)
		if err != nil {
			return zero, err
		}
		if v == nil {
			return zero, nil
		}
		out, ok := v.(Out)
		if !ok {
			return zero, &PayloadTypeError{
				Event: tm.post,
				Index: 2,
				Want:  reflect.TypeFor[Out]().String(),
				Got:   fmt.Sprintf("%T", v),
			}
		}
		return out, nil
	}

	return typed, tm, nil
}

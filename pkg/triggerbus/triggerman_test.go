package triggerbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addFunc sums two int positional arguments.
func addFunc(calls *int) triggerbus.Func {
	return func(_ context.Context, args triggerbus.Args, _ triggerbus.Kwargs) (any, error) {
		if calls != nil {
			*calls++
		}
		a, err := triggerbus.Arg[int](triggerbus.Payload(args), 0)
		if err != nil {
			return nil, err
		}
		b, err := triggerbus.Arg[int](triggerbus.Payload(args), 1)
		if err != nil {
			return nil, err
		}
		return a + b, nil
	}
}

func TestNewTriggerman_DerivedEvents(t *testing.T) {
	bus := triggerbus.NewBus()

	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	assert.Equal(t, "Math.add", tm.Name())
	assert.Equal(t, "Math.add.pre-exec", tm.PreEvent())
	assert.Equal(t, "Math.add.post-exec", tm.PostEvent())

	for _, ev := range []string{tm.PreEvent(), tm.PostEvent()} {
		info, err := bus.Describe(ev)
		require.NoError(t, err)
		assert.Equal(t, "Math.add", info.Owner)
		assert.NotEmpty(t, info.Description)
	}
}

func TestNewTriggerman_Errors(t *testing.T) {
	t.Run("duplicate derived name leaves registry untouched", func(t *testing.T) {
		bus := newBusWithEvents(t, "Math.add.post-exec")

		_, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
		assert.ErrorIs(t, err, triggerbus.ErrDuplicateEvent)
		assert.False(t, bus.HasEvent("Math.add.pre-exec"))
	})

	t.Run("second triggerman with same name", func(t *testing.T) {
		bus := triggerbus.NewBus()
		_, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
		require.NoError(t, err)

		_, err = triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
		assert.ErrorIs(t, err, triggerbus.ErrDuplicateEvent)
	})

	t.Run("explicit event must exist", func(t *testing.T) {
		bus := triggerbus.NewBus()
		_, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil), triggerbus.WithPreEvent("missing"))
		assert.ErrorIs(t, err, triggerbus.ErrUnknownEvent)
		assert.Empty(t, bus.Events())
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := triggerbus.NewTriggerman(triggerbus.NewBus(), "Math.add", nil)
		assert.ErrorIs(t, err, triggerbus.ErrNilFunc)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := triggerbus.NewTriggerman(triggerbus.NewBus(), "", addFunc(nil))
		assert.ErrorIs(t, err, triggerbus.ErrEmptyEventName)
	})

	t.Run("nil bus", func(t *testing.T) {
		_, err := triggerbus.NewTriggerman(nil, "Math.add", addFunc(nil))
		assert.Error(t, err)
	})
}

func TestNewTriggerman_RegistersBothOrNeither(t *testing.T) {
	for range 100 {
		bus := triggerbus.NewBus()

		var (
			wg     sync.WaitGroup
			tmErr  error
			regErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, tmErr = triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
		}()
		go func() {
			defer wg.Done()
			regErr = bus.RegisterEvent("Math.add.post-exec")
		}()
		wg.Wait()

		if tmErr != nil {
			assert.ErrorIs(t, tmErr, triggerbus.ErrDuplicateEvent)
			assert.NoError(t, regErr)
			assert.False(t, bus.HasEvent("Math.add.pre-exec"))
		} else {
			assert.ErrorIs(t, regErr, triggerbus.ErrDuplicateEvent)
			assert.True(t, bus.HasEvent("Math.add.pre-exec"))
		}
	}
}

func TestTriggerman_DisabledEvents(t *testing.T) {
	bus := triggerbus.NewBus()

	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil),
		triggerbus.WithoutPre(), triggerbus.WithoutPost())
	require.NoError(t, err)

	assert.Empty(t, tm.PreEvent())
	assert.Empty(t, tm.PostEvent())
	assert.Empty(t, bus.Events())

	got, err := tm.Call(context.Background(), triggerbus.Args{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestTriggerman_NamedEventsScenario(t *testing.T) {
	bus := newBusWithEvents(t, "pre", "post")

	tm, err := triggerbus.NewTriggerman(bus, "add", addFunc(nil),
		triggerbus.WithPreEvent("pre"), triggerbus.WithPostEvent("post"))
	require.NoError(t, err)
	assert.Equal(t, []string{"post", "pre"}, bus.Events())

	subscribe(t, bus, "post", func(_ context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
		result, err := triggerbus.Arg[int](p, 2)
		if err != nil {
			return triggerbus.Continue(), err
		}
		return triggerbus.ModifyPayload(p.At(0), p.At(1), result*2), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestTriggerman_PreStopSkipsFunction(t *testing.T) {
	bus := triggerbus.NewBus()
	calls := 0
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(&calls))
	require.NoError(t, err)

	var postRan bool
	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.StopExecution(42, false), nil
	})
	subscribe(t, bus, tm.PostEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		postRan = true
		return triggerbus.Continue(), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Zero(t, calls)
	assert.False(t, postRan)
}

func TestTriggerman_PreStopWithPost(t *testing.T) {
	bus := triggerbus.NewBus()
	calls := 0
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(&calls))
	require.NoError(t, err)

	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.StopExecution(42, true), nil
	})

	var postSaw triggerbus.Payload
	subscribe(t, bus, tm.PostEvent(), func(_ context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
		postSaw = p.Clone()
		return triggerbus.ModifyPayload(p.At(0), p.At(1), 43), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 43, got)
	assert.Zero(t, calls)
	require.Len(t, postSaw, 3)
	assert.Equal(t, triggerbus.Args{2, 3}, postSaw[0])
	assert.Equal(t, 42, postSaw[2])
}

func TestTriggerman_PreStopIgnoresRewrittenPayload(t *testing.T) {
	bus := triggerbus.NewBus()
	calls := 0
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(&calls))
	require.NoError(t, err)

	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.ModifyPayload("not-args"), nil
	})
	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.StopExecution(42, false), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Zero(t, calls)
}

func TestTriggerman_PreStopWithPostSeesOriginalArguments(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Echo.say", func(context.Context, triggerbus.Args, triggerbus.Kwargs) (any, error) {
		return "called", nil
	})
	require.NoError(t, err)

	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.ModifyPayload(triggerbus.Args{"rewritten"}, nil), nil
	})
	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.StopExecution(42, true), nil
	})

	var postArgs any
	subscribe(t, bus, tm.PostEvent(), func(_ context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
		postArgs = p.At(0)
		return triggerbus.Continue(), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{"original"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, triggerbus.Args{"original"}, postArgs)
}

func TestTriggerman_PreRewritesArguments(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	subscribe(t, bus, tm.PreEvent(), func(_ context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
		// Plain slices and maps are accepted in place of Args and Kwargs.
		return triggerbus.ModifyPayload([]any{10, 20}, map[string]any{"note": "rewritten"}), nil
	})

	var kwargs triggerbus.Kwargs
	subscribe(t, bus, tm.PostEvent(), func(_ context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
		kwargs, _ = triggerbus.Arg[triggerbus.Kwargs](p, 1)
		return triggerbus.Continue(), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, got)
	assert.Equal(t, triggerbus.Kwargs{"note": "rewritten"}, kwargs)
}

func TestTriggerman_PostRewritesResult(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	subscribe(t, bus, tm.PostEvent(), func(_ context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.ModifyPayload(p.At(0), p.At(1), "replaced"), nil
	})

	got, err := tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)
}

func TestTriggerman_PostStopReturnsImmediately(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	var log []string
	subscribe(t, bus, tm.PostEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		log = append(log, "stopper")
		return triggerbus.StopExecution("early", false), nil
	})
	subscribe(t, bus, tm.PostEvent(), marker(&log, "never"))

	got, err := tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "early", got)
	assert.Equal(t, []string{"stopper"}, log)
}

func TestTriggerman_FunctionErrorSkipsPost(t *testing.T) {
	bus := triggerbus.NewBus()
	errFailed := errors.New("failed")
	tm, err := triggerbus.NewTriggerman(bus, "Jobs.run",
		func(context.Context, triggerbus.Args, triggerbus.Kwargs) (any, error) {
			return nil, errFailed
		})
	require.NoError(t, err)

	var log []string
	subscribe(t, bus, tm.PostEvent(), marker(&log, "post"))

	_, err = tm.Call(context.Background(), nil, nil)
	assert.Same(t, errFailed, err)
	assert.Empty(t, log)
}

func TestTriggerman_SubscriberErrorPropagates(t *testing.T) {
	bus := triggerbus.NewBus()
	calls := 0
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(&calls))
	require.NoError(t, err)

	errDenied := errors.New("denied")
	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.Continue(), errDenied
	})

	_, err = tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
	assert.ErrorIs(t, err, errDenied)

	var cbErr *triggerbus.CallbackError
	require.True(t, errors.As(err, &cbErr))
	assert.Equal(t, tm.PreEvent(), cbErr.Event)
	assert.Zero(t, calls)
}

func TestTriggerman_MalformedPreRewrite(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	tests := []struct {
		name    string
		rewrite []any
		index   int
	}{
		{name: "too short", rewrite: []any{triggerbus.Args{1, 2}}, index: 1},
		{name: "bad args", rewrite: []any{"oops", nil}, index: 0},
		{name: "bad kwargs", rewrite: []any{triggerbus.Args{1, 2}, 7}, index: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
				return triggerbus.ModifyPayload(tt.rewrite...), nil
			})
			defer sub.Unsubscribe()

			_, err := tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
			assert.ErrorIs(t, err, triggerbus.ErrPayloadType)

			var pte *triggerbus.PayloadTypeError
			require.True(t, errors.As(err, &pte))
			assert.Equal(t, tm.PreEvent(), pte.Event)
			assert.Equal(t, tt.index, pte.Index)
		})
	}
}

func TestTriggerman_EmptyPostPayload(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	subscribe(t, bus, tm.PostEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.ModifyPayload(), nil
	})

	_, err = tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
	assert.ErrorIs(t, err, triggerbus.ErrPayloadType)
}

func TestTriggerman_Kwargs(t *testing.T) {
	bus := triggerbus.NewBus()
	tm, err := triggerbus.NewTriggerman(bus, "Greeter.greet",
		func(_ context.Context, args triggerbus.Args, kwargs triggerbus.Kwargs) (any, error) {
			greeting := "hello"
			if g, ok := kwargs["greeting"].(string); ok {
				greeting = g
			}
			return greeting + " " + args[0].(string), nil
		})
	require.NoError(t, err)

	got, err := tm.Func()(context.Background(), triggerbus.Args{"ada"}, triggerbus.Kwargs{"greeting": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi ada", got)
}

func TestTriggerman_NilContext(t *testing.T) {
	tm, err := triggerbus.NewTriggerman(triggerbus.NewBus(), "Math.add", addFunc(nil))
	require.NoError(t, err)

	//nolint:staticcheck // nil context is the point of the test
	_, err = tm.Call(nil, triggerbus.Args{1, 2}, nil)
	assert.ErrorIs(t, err, triggerbus.ErrNilContext)
}

func TestTriggerman_MetricsAndSpans(t *testing.T) {
	metrics := &recordingMetrics{}
	spans := &recordingSpans{}
	bus := triggerbus.NewBus(
		triggerbus.WithMetricsRecorder(metrics),
		triggerbus.WithSpanManager(spans),
	)

	tm, err := triggerbus.NewTriggerman(bus, "Math.add", addFunc(nil))
	require.NoError(t, err)

	_, err = tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
	require.NoError(t, err)

	subscribe(t, bus, tm.PreEvent(), func(context.Context, triggerbus.Payload) (triggerbus.Outcome, error) {
		return triggerbus.StopExecution(0, false), nil
	})
	_, err = tm.Call(context.Background(), triggerbus.Args{1, 2}, nil)
	require.NoError(t, err)

	require.Len(t, metrics.calls, 2)
	assert.Equal(t, callMetric{triggerman: "Math.add"}, metrics.calls[0])
	assert.Equal(t, callMetric{triggerman: "Math.add", skipped: true}, metrics.calls[1])

	assert.Equal(t, []string{
		"call:Math.add", "dispatch:Math.add.pre-exec", "dispatch:Math.add.post-exec",
		"call:Math.add", "dispatch:Math.add.pre-exec",
	}, spans.starts)
}

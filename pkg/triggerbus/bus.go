package triggerbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/journal"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Bus is an in-process event bus.
//
// A Bus owns a Registry of named events and dispatches them synchronously
// in the caller's goroutine. It is safe for concurrent use.
type Bus struct {
	*Registry

	cfg       busConfig
	closeOnce sync.Once
	closeErr  error
}

// NewBus creates an empty bus.
//
// Example:
//
//	bus := triggerbus.NewBus(
//	    triggerbus.WithLogger(slog.Default()),
//	    triggerbus.WithMiddleware(triggerbus.RecoveryMiddleware()),
//	)
func NewBus(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.metricsEnabled {
		cfg.metrics = observability.NoopMetrics{}
	} else if cfg.metrics == nil {
		cfg.metrics = observability.NewMetricsRecorder()
	}

	if !cfg.tracingEnabled {
		cfg.spans = observability.NoopSpanManager{}
	} else if cfg.spans == nil {
		cfg.spans = observability.NewSpanManager()
	}

	return &Bus{
		Registry: newRegistry(cfg.logger, cfg.middleware),
		cfg:      cfg,
	}
}

// Use installs middleware around callbacks subscribed from now on.
// Existing subscribers are not rewrapped.
func (b *Bus) Use(mw ...Middleware) {
	b.use(mw...)
}

// Logger returns the configured logger, or nil.
func (b *Bus) Logger() *slog.Logger {
	return b.cfg.logger
}

// MaxDepth returns the nesting limit.
func (b *Bus) MaxDepth() int {
	return b.cfg.maxDepth
}

// Journal returns the configured journal store, or nil.
func (b *Bus) Journal() journal.Store {
	return b.cfg.journal
}

// Close releases resources the bus opened itself, such as a journal created
// by NewFromConfig. Stores passed with WithJournal are left open.
// Safe to call more than once.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		if b.cfg.ownsJournal && b.cfg.journal != nil {
			b.closeErr = b.cfg.journal.Close()
		}
	})
	return b.closeErr
}

// Trigger dispatches name to its subscribers in registration order.
//
// Each subscriber receives the payload committed by its predecessor:
//   - Continue leaves it unchanged
//   - ModifyPayload replaces it
//   - StopExecution ends the dispatch with Result.Stopped set
//
// A callback error aborts the dispatch. It is not returned unmodified but
// wrapped in a *CallbackError naming the event and subscriber; errors.Is and
// errors.As still reach the original. When no subscriber rewrote the payload, Result.Payload is
// the caller's slice itself. An event without subscribers is a no-op.
//
// Trigger never inspects ctx for cancellation; ctx carries dispatch depth,
// spans and caller values into callbacks. Each callback gets its own derived
// ctx, so handing it to another goroutine is safe.
func (b *Bus) Trigger(ctx context.Context, name string, payload ...any) (Result, error) {
	if ctx == nil {
		return Result{Payload: payload}, &EventError{Event: name, Op: "trigger", Err: ErrNilContext}
	}

	subs, ok := b.snapshot(name)
	if !ok {
		return Result{Payload: payload}, &EventError{Event: name, Op: "trigger", Err: ErrUnknownEvent}
	}

	depth := dispatchDepth(ctx) + 1
	if depth > b.cfg.maxDepth {
		err := &MaxDepthError{Event: name, Max: b.cfg.maxDepth}
		observability.LogDispatchError(b.cfg.logger, name, "", err, 0, "")
		return Result{Payload: payload}, err
	}

	dispatchID := uuid.New().String()
	info := DispatchInfo{
		Event:      name,
		DispatchID: dispatchID,
		Depth:      depth,
		Index:      -1,
	}

	start := time.Now()
	ctx, span := b.cfg.spans.StartDispatchSpan(ctx, name, dispatchID, depth)
	observability.LogDispatchStart(b.cfg.logger, name, dispatchID, len(subs))

	res := Result{Payload: payload}
	rewrites := 0
	var (
		err    error
		failed string
	)

	for i, s := range subs {
		info.Callback = s.name
		info.Index = i

		out, cbErr := s.cb(withDispatch(ctx, info), res.Payload)
		if cbErr != nil {
			err = &CallbackError{Event: name, Callback: s.name, Index: i, Err: cbErr}
			failed = s.name
			break
		}

		if out.kind == kindModify {
			res.Payload = out.payload
			rewrites++
			if b.cfg.tracingEnabled {
				b.cfg.spans.AddSpanEvent(ctx, "payload.modified",
					attribute.String("callback", s.name),
					attribute.Int("payload.len", len(out.payload)),
				)
			}
			continue
		}

		if out.kind == kindStop {
			res.Stopped = true
			res.Value = out.result
			res.TriggerPost = out.triggerPost
			if b.cfg.tracingEnabled {
				b.cfg.spans.AddSpanEvent(ctx, "dispatch.stopped",
					attribute.String("callback", s.name),
					attribute.Bool("trigger_post", out.triggerPost),
				)
			}
			break
		}
	}

	duration := time.Since(start)
	durationMs := float64(duration.Microseconds()) / 1000

	b.cfg.metrics.RecordDispatch(ctx, name, duration, rewrites, res.Stopped, err)
	b.cfg.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogDispatchError(b.cfg.logger, name, dispatchID, err, durationMs, failed)
	} else {
		observability.LogDispatchComplete(b.cfg.logger, name, dispatchID, durationMs, rewrites, res.Stopped)
	}

	b.record(ctx, dispatchRecord{
		dispatchID:  dispatchID,
		event:       name,
		subscribers: len(subs),
		rewrites:    rewrites,
		payloadLen:  len(res.Payload),
		depth:       depth,
		stopped:     res.Stopped,
		err:         err,
		duration:    duration,
	})

	return res, err
}

type dispatchRecord struct {
	dispatchID  string
	event       string
	subscribers int
	rewrites    int
	payloadLen  int
	depth       int
	stopped     bool
	err         error
	duration    time.Duration
}

// record appends a journal entry. Failures are logged, never returned.
func (b *Bus) record(ctx context.Context, r dispatchRecord) {
	if b.cfg.journal == nil {
		return
	}

	outcome := journal.OutcomeContinued
	switch {
	case r.err != nil:
		outcome = journal.OutcomeFailed
	case r.stopped:
		outcome = journal.OutcomeStopped
	}

	entry := journal.NewEntry(r.dispatchID, r.event, outcome)
	entry.Subscribers = r.subscribers
	entry.Rewrites = r.rewrites
	entry.PayloadLen = r.payloadLen
	entry.Depth = r.depth
	entry.Duration = r.duration
	if r.err != nil {
		entry.Error = r.err.Error()
	}

	if err := b.cfg.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		observability.LogJournalError(b.cfg.logger, r.event, "append", err)
	}
}

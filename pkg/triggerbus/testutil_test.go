package triggerbus_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// newBusWithEvents creates a bus with the given events registered.
func newBusWithEvents(t *testing.T, events ...string) *triggerbus.Bus {
	t.Helper()
	bus := triggerbus.NewBus()
	for _, ev := range events {
		require.NoError(t, bus.RegisterEvent(ev))
	}
	return bus
}

// subscribe attaches cb and fails the test on error.
func subscribe(t *testing.T, bus *triggerbus.Bus, event string, cb triggerbus.Callback, opts ...triggerbus.SubscribeOption) *triggerbus.Subscription {
	t.Helper()
	sub, err := bus.On(event, cb, opts...)
	require.NoError(t, err)
	return sub
}

// marker returns a callback that appends name to log and continues.
func marker(log *[]string, name string) triggerbus.Callback {
	return func(_ context.Context, _ triggerbus.Payload) (triggerbus.Outcome, error) {
		*log = append(*log, name)
		return triggerbus.Continue(), nil
	}
}

// logCapture collects slog records as decoded JSON lines.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newLogCapture() (*logCapture, *slog.Logger) {
	c := &logCapture{}
	return c, slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) records() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, line := range bytes.Split(c.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *logCapture) withMsg(msg string) []map[string]any {
	var out []map[string]any
	for _, r := range c.records() {
		if r["msg"] == msg {
			out = append(out, r)
		}
	}
	return out
}

// recordingMetrics implements observability.MetricsRecorder in memory.
type recordingMetrics struct {
	mu         sync.Mutex
	dispatches []dispatchMetric
	calls      []callMetric
}

type dispatchMetric struct {
	event    string
	rewrites int
	stopped  bool
	err      error
}

type callMetric struct {
	triggerman string
	skipped    bool
	err        error
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, event string, _ time.Duration, rewrites int, stopped bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, dispatchMetric{event, rewrites, stopped, err})
}

func (m *recordingMetrics) RecordTriggermanCall(_ context.Context, triggerman string, _ time.Duration, skipped bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, callMetric{triggerman, skipped, err})
}

// recordingSpans implements observability.SpanManager in memory.
type recordingSpans struct {
	mu     sync.Mutex
	starts []string
	events []string
	errs   []error
}

func (s *recordingSpans) StartDispatchSpan(ctx context.Context, event, _ string, _ int) (context.Context, trace.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, "dispatch:"+event)
	return ctx, noop.Span{}
}

func (s *recordingSpans) StartCallSpan(ctx context.Context, triggerman string) (context.Context, trace.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, "call:"+triggerman)
	return ctx, noop.Span{}
}

func (s *recordingSpans) EndSpanWithError(_ trace.Span, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSpans) AddSpanEvent(_ context.Context, name string, _ ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

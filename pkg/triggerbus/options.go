package triggerbus

import (
	"log/slog"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus/journal"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/observability"
)

// DefaultMaxDepth is the nesting limit for dispatches triggered from
// inside callbacks.
const DefaultMaxDepth = 32

// busConfig holds configuration for a Bus.
type busConfig struct {
	logger         *slog.Logger
	metricsEnabled bool
	metrics        observability.MetricsRecorder
	tracingEnabled bool
	spans          observability.SpanManager
	maxDepth       int
	journal        journal.Store
	ownsJournal    bool
	journalSet     bool
	middleware     []Middleware
}

// defaultBusConfig returns the default bus configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		maxDepth: DefaultMaxDepth,
	}
}

// Option configures a Bus.
type Option func(*busConfig)

// WithLogger sets the logger used for registration and dispatch lines.
// Nil disables logging (the default).
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for dispatches and triggerman
// calls. Instruments come from the global MeterProvider.
func WithMetrics(enabled bool) Option {
	return func(c *busConfig) {
		c.metricsEnabled = enabled
	}
}

// WithMetricsRecorder sets a custom recorder and enables metrics.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *busConfig) {
		c.metrics = m
		c.metricsEnabled = m != nil
	}
}

// WithTracing enables OpenTelemetry spans for dispatches and triggerman
// calls. Spans come from the global TracerProvider.
func WithTracing(enabled bool) Option {
	return func(c *busConfig) {
		c.tracingEnabled = enabled
	}
}

// WithSpanManager sets a custom span manager and enables tracing.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *busConfig) {
		c.spans = s
		c.tracingEnabled = s != nil
	}
}

// WithMaxDepth sets how deeply dispatches may nest.
// Default: 32. Values below 1 are ignored.
//
// A callback that triggers an event starts a nested dispatch. Exceeding
// the limit returns a *MaxDepthError instead of recursing forever.
func WithMaxDepth(n int) Option {
	return func(c *busConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithJournal records every dispatch in store. The caller keeps ownership:
// Bus.Close does not close it.
func WithJournal(store journal.Store) Option {
	return func(c *busConfig) {
		c.journal = store
		c.ownsJournal = false
		c.journalSet = true
	}
}

// withOwnedJournal is used by NewFromConfig for stores the bus opened itself.
func withOwnedJournal(store journal.Store) Option {
	return func(c *busConfig) {
		c.journal = store
		c.ownsJournal = true
	}
}

// WithMiddleware installs middleware around every callback subscribed
// after construction. The first middleware is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *busConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// eventConfig holds RegisterEvent options.
type eventConfig struct {
	owner       string
	description string
	tags        []string
}

// EventOption configures RegisterEvent.
type EventOption func(*eventConfig)

// WithOwner records the triggerman (or component) that declared the event.
func WithOwner(owner string) EventOption {
	return func(c *eventConfig) {
		c.owner = owner
	}
}

// WithDescription attaches a human-readable description.
func WithDescription(desc string) EventOption {
	return func(c *eventConfig) {
		c.description = desc
	}
}

// WithTags attaches free-form tags, shown by Describe and the catalog CLI.
func WithTags(tags ...string) EventOption {
	return func(c *eventConfig) {
		c.tags = append(c.tags, tags...)
	}
}

// subscribeConfig holds On options.
type subscribeConfig struct {
	name string
}

// SubscribeOption configures On.
type SubscribeOption func(*subscribeConfig)

// WithCallbackName names a subscriber for logs, errors and Describe.
// Unnamed subscribers get "callback-<n>".
func WithCallbackName(name string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.name = name
	}
}

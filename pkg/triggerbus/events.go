package triggerbus

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus/observability"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/registry"
)

// Callback is a subscriber. It receives the working payload and returns
// what the dispatcher should do next. A non-nil error aborts the dispatch.
type Callback func(ctx context.Context, p Payload) (Outcome, error)

// EventInfo describes a registered event.
type EventInfo struct {
	Name         string
	Owner        string
	Description  string
	Tags         []string
	Callbacks    []string
	RegisteredAt time.Time
}

// Subscribers returns the number of subscribers at the time of Describe.
func (i EventInfo) Subscribers() int {
	return len(i.Callbacks)
}

type subscriber struct {
	id   uint64
	name string
	cb   Callback
}

// eventEntry is stored by value. subs is never mutated in place: On and
// Unsubscribe install a fresh slice, so a snapshot taken by Trigger stays
// valid while callbacks subscribe or unsubscribe.
type eventEntry struct {
	info EventInfo
	subs []subscriber
}

// Registry is the event table behind a Bus.
//
// Registry is safe for concurrent use. Callbacks may register events and
// subscribe while a dispatch is running.
type Registry struct {
	events *registry.Registry[string, eventEntry]
	nextID atomic.Uint64
	logger *slog.Logger

	mwMu       sync.RWMutex
	middleware []Middleware
}

func newRegistry(logger *slog.Logger, mw []Middleware) *Registry {
	return &Registry{
		events:     registry.New[string, eventEntry](),
		logger:     logger,
		middleware: slices.Clone(mw),
	}
}

// RegisterEvent declares a new event.
//
// Returns ErrEmptyEventName for an empty name and ErrDuplicateEvent if the
// name is taken, both wrapped in an *EventError.
//
// Example:
//
//	err := bus.RegisterEvent("order.created",
//	    triggerbus.WithDescription("fires after an order is persisted"),
//	    triggerbus.WithTags("orders"),
//	)
func (r *Registry) RegisterEvent(name string, opts ...EventOption) error {
	if name == "" {
		return &EventError{Op: "register", Err: ErrEmptyEventName}
	}

	entry := newEventEntry(name, opts)
	if !r.events.Add(name, entry) {
		return &EventError{Event: name, Op: "register", Err: ErrDuplicateEvent}
	}

	observability.LogEventRegistered(r.logger, name, entry.info.Owner)
	return nil
}

// registerEvents declares all of entries or none of them.
func (r *Registry) registerEvents(entries map[string][]EventOption) error {
	table := make(map[string]eventEntry, len(entries))
	for name, opts := range entries {
		if name == "" {
			return &EventError{Op: "register", Err: ErrEmptyEventName}
		}
		table[name] = newEventEntry(name, opts)
	}

	if taken, ok := r.events.AddAll(table); !ok {
		return &EventError{Event: taken, Op: "register", Err: ErrDuplicateEvent}
	}

	for _, name := range slices.Sorted(maps.Keys(table)) {
		observability.LogEventRegistered(r.logger, name, table[name].info.Owner)
	}
	return nil
}

func newEventEntry(name string, opts []EventOption) eventEntry {
	var cfg eventConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return eventEntry{
		info: EventInfo{
			Name:         name,
			Owner:        cfg.owner,
			Description:  cfg.description,
			Tags:         slices.Clone(cfg.tags),
			RegisteredAt: time.Now(),
		},
	}
}

// MustRegisterEvent is like RegisterEvent but panics on error.
// Intended for package-level event declarations.
func (r *Registry) MustRegisterEvent(name string, opts ...EventOption) {
	if err := r.RegisterEvent(name, opts...); err != nil {
		panic(err)
	}
}

// ValidateEvent returns an error wrapping ErrUnknownEvent if name was never
// registered.
func (r *Registry) ValidateEvent(name string) error {
	return r.validate("validate", name)
}

func (r *Registry) validate(op, name string) error {
	if !r.events.Has(name) {
		return &EventError{Event: name, Op: op, Err: ErrUnknownEvent}
	}
	return nil
}

// HasEvent reports whether name is registered.
func (r *Registry) HasEvent(name string) bool {
	return r.events.Has(name)
}

// Events returns all registered event names in sorted order.
func (r *Registry) Events() []string {
	return r.events.Keys()
}

// Describe returns metadata and current subscribers for an event.
func (r *Registry) Describe(name string) (EventInfo, error) {
	entry, ok := r.events.Get(name)
	if !ok {
		return EventInfo{}, &EventError{Event: name, Op: "describe", Err: ErrUnknownEvent}
	}

	return entry.describe(), nil
}

// Catalog describes every registered event, sorted by name.
func (r *Registry) Catalog() []EventInfo {
	infos := make([]EventInfo, 0, r.events.Len())
	r.events.Range(func(_ string, e eventEntry) bool {
		infos = append(infos, e.describe())
		return true
	})
	return infos
}

func (e eventEntry) describe() EventInfo {
	info := e.info
	info.Tags = slices.Clone(info.Tags)
	info.Callbacks = make([]string, len(e.subs))
	for i, s := range e.subs {
		info.Callbacks[i] = s.name
	}
	return info
}

// On appends cb to the subscriber chain of name.
//
// Callbacks run in the order they were added. Middleware installed with Use
// at the time of the call wraps cb; later Use calls do not affect it.
//
// Example:
//
//	sub, err := bus.On("order.created", func(ctx context.Context, p triggerbus.Payload) (triggerbus.Outcome, error) {
//	    return triggerbus.Continue(), nil
//	}, triggerbus.WithCallbackName("audit"))
//	defer sub.Unsubscribe()
func (r *Registry) On(name string, cb Callback, opts ...SubscribeOption) (*Subscription, error) {
	if cb == nil {
		return nil, &EventError{Event: name, Op: "subscribe", Err: ErrNilCallback}
	}
	if err := r.validate("subscribe", name); err != nil {
		return nil, err
	}

	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	id := r.nextID.Add(1)
	if cfg.name == "" {
		cfg.name = fmt.Sprintf("callback-%d", id)
	}

	sub := subscriber{id: id, name: cfg.name, cb: r.wrap(cb)}

	position := -1
	r.events.Update(name, func(e eventEntry) eventEntry {
		subs := make([]subscriber, len(e.subs), len(e.subs)+1)
		copy(subs, e.subs)
		e.subs = append(subs, sub)
		position = len(e.subs) - 1
		return e
	})

	observability.LogSubscribed(r.logger, name, cfg.name, position)
	return &Subscription{registry: r, event: name, name: cfg.name, id: id}, nil
}

// wrap applies the installed middleware, first-installed outermost.
func (r *Registry) wrap(cb Callback) Callback {
	r.mwMu.RLock()
	defer r.mwMu.RUnlock()

	for i := len(r.middleware) - 1; i >= 0; i-- {
		cb = r.middleware[i](cb)
	}
	return cb
}

func (r *Registry) use(mw ...Middleware) {
	r.mwMu.Lock()
	defer r.mwMu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// snapshot returns the subscriber chain of name as it is right now.
func (r *Registry) snapshot(name string) ([]subscriber, bool) {
	entry, ok := r.events.Get(name)
	if !ok {
		return nil, false
	}
	return entry.subs, true
}

func (r *Registry) remove(name string, id uint64) bool {
	removed := false
	r.events.Update(name, func(e eventEntry) eventEntry {
		idx := slices.IndexFunc(e.subs, func(s subscriber) bool { return s.id == id })
		if idx < 0 {
			return e
		}
		e.subs = slices.Concat(e.subs[:idx], e.subs[idx+1:])
		removed = true
		return e
	})
	return removed
}

// Subscription is a handle to one callback added with On.
type Subscription struct {
	registry *Registry
	event    string
	name     string
	id       uint64
	once     sync.Once
}

// Event returns the event the callback is attached to.
func (s *Subscription) Event() string { return s.event }

// Name returns the callback name.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe removes the callback from later dispatches. A dispatch
// already in progress still runs it. Calling Unsubscribe more than once
// is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.registry.remove(s.event, s.id)
	})
}

package triggerbus

import (
	"fmt"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus/config"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/journal"
)

// Journal drivers accepted under journal.driver.
const (
	JournalDriverMemory = "memory"
	JournalDriverSQLite = "sqlite"
)

// RegisterCatalog registers every entry of the "events" list in cfg.
//
// Each entry takes name (required), owner, description and tags:
//
//	events:
//	  - name: order.created
//	    owner: Orders.create
//	    description: fires after an order is persisted
//	    tags: [orders, audit]
//
// Registration stops at the first failing entry.
func (r *Registry) RegisterCatalog(cfg config.Config) error {
	for i, ev := range cfg.Sections("events") {
		name := ev.String("name", "")
		err := r.RegisterEvent(name,
			WithOwner(ev.String("owner", "")),
			WithDescription(ev.String("description", "")),
			WithTags(ev.StringSlice("tags", nil)...),
		)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	return nil
}

// NewFromConfig builds a bus from a decoded config document.
//
// Recognised keys:
//
//	max_depth: 32           # nesting limit
//	metrics: false          # OTel metrics
//	tracing: false          # OTel spans
//	recover_panics: false   # install RecoveryMiddleware
//	log_callbacks: false    # install LoggingMiddleware with the bus logger
//	journal:
//	  driver: sqlite        # memory | sqlite, empty disables the journal
//	  path: journal.db      # required for sqlite
//	events: [...]           # see RegisterCatalog
//
// extra options are applied after the config, so they win. A journal
// opened here is owned by the bus and closed by Bus.Close; when extra
// carries WithJournal the configured journal is never opened.
func NewFromConfig(cfg config.Config, extra ...Option) (*Bus, error) {
	opts := []Option{
		WithMaxDepth(cfg.Int("max_depth", DefaultMaxDepth)),
		WithMetrics(cfg.Bool("metrics", false)),
		WithTracing(cfg.Bool("tracing", false)),
	}

	// A WithJournal in extra replaces the configured journal, so only open
	// one when extra leaves it alone.
	var probe busConfig
	for _, opt := range extra {
		opt(&probe)
	}
	if !probe.journalSet {
		store, err := openJournal(cfg.Section("journal"))
		if err != nil {
			return nil, err
		}
		if store != nil {
			opts = append(opts, withOwnedJournal(store))
		}
	}

	opts = append(opts, extra...)

	logCallbacks := cfg.Bool("log_callbacks", false)
	recoverPanics := cfg.Bool("recover_panics", false)
	opts = append(opts, func(c *busConfig) {
		var mw []Middleware
		if logCallbacks {
			mw = append(mw, LoggingMiddleware(c.logger))
		}
		if recoverPanics {
			mw = append(mw, RecoveryMiddleware())
		}
		c.middleware = append(mw, c.middleware...)
	})

	bus := NewBus(opts...)
	if err := bus.RegisterCatalog(cfg); err != nil {
		bus.Close()
		return nil, err
	}
	return bus, nil
}

// openJournal opens the store described by a journal section, or returns
// nil when none is configured.
func openJournal(cfg config.Config) (journal.Store, error) {
	switch driver := cfg.String("driver", ""); driver {
	case "":
		return nil, nil
	case JournalDriverMemory:
		return journal.NewMemoryStore(), nil
	case JournalDriverSQLite:
		path := cfg.String("path", "")
		if path == "" {
			return nil, fmt.Errorf("journal: sqlite driver requires a path")
		}
		store, err := journal.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("journal: unknown driver %q", driver)
	}
}

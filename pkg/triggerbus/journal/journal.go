// Package journal records the outcome of every bus dispatch for audit and
// debugging.
//
// A journal is an append-only log fed by the bus after each Trigger call. It
// never feeds state back into the bus: events and subscribers are not
// persisted, and replaying a journal does not re-run callbacks.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outcome describes how a dispatch ended.
type Outcome string

// Dispatch outcomes.
const (
	OutcomeContinued Outcome = "continued"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one journaled dispatch.
type Entry struct {
	ID          string        `json:"id"`
	DispatchID  string        `json:"dispatch_id"`
	Event       string        `json:"event"`
	Outcome     Outcome       `json:"outcome"`
	Subscribers int           `json:"subscribers"`
	Rewrites    int           `json:"rewrites"`
	PayloadLen  int           `json:"payload_len"`
	Depth       int           `json:"depth"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewEntry creates an entry with a fresh ID and the current UTC time.
func NewEntry(dispatchID, event string, outcome Outcome) *Entry {
	return &Entry{
		ID:         uuid.New().String(),
		DispatchID: dispatchID,
		Event:      event,
		Outcome:    outcome,
		Timestamp:  time.Now().UTC(),
	}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Event   string
	Outcome Outcome
	Since   time.Time

	// Limit keeps only the most recent Limit matches. 0 means no limit.
	Limit int
}

// Store persists journal entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores an entry. Returns ErrDuplicateEntry if the ID exists.
	Append(ctx context.Context, entry *Entry) error

	// Get returns the entry with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// List returns matching entries in append order.
	List(ctx context.Context, filter Filter) ([]*Entry, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)

	// Purge deletes entries older than before and returns how many went.
	Purge(ctx context.Context, before time.Time) (int, error)

	// Close releases resources. Safe to call more than once.
	Close() error
}

// Sentinel errors for journal operations.
var (
	ErrNotFound       = errors.New("journal entry not found")
	ErrDuplicateEntry = errors.New("journal entry already exists")
	ErrInvalidEntry   = errors.New("journal entry requires an ID and an event")
	ErrStoreClosed    = errors.New("journal store closed")
)

func validate(entry *Entry) error {
	if entry == nil || entry.ID == "" || entry.Event == "" {
		return ErrInvalidEntry
	}
	return nil
}

func (f Filter) matches(e *Entry) bool {
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

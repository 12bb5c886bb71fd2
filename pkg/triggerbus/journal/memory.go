package journal

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Data is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	byID    map[string]*Entry
	closed  bool
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Entry),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, entry *Entry) error {
	if err := validate(entry); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if _, exists := m.byID[entry.ID]; exists {
		return ErrDuplicateEntry
	}

	stored := *entry
	m.entries = append(m.entries, &stored)
	m.byID[stored.ID] = &stored
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	e, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *e
	return &out, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, filter Filter) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var out []*Entry
	for _, e := range m.entries {
		if filter.matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.entries), nil
}

// Purge implements Store.
func (m *MemoryStore) Purge(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if e.Timestamp.Before(before) {
			delete(m.byID, e.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(m.entries[len(kept):])
	m.entries = kept
	return removed, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	m.byID = nil
	return nil
}

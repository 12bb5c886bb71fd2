package registry

import (
	"cmp"
	"slices"
	"sync"
)

// Registry is a thread-safe table of values indexed by an ordered key.
// It uses sync.RWMutex for read-heavy workloads.
type Registry[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Add inserts value under key if the key is absent.
// Returns false, leaving the existing value untouched, if the key exists.
func (r *Registry[K, V]) Add(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return false
	}
	r.entries[key] = value
	return true
}

// AddAll inserts every entry or none. If any key exists it returns that key
// (the smallest, when several collide) and false.
func (r *Registry[K, V]) AddAll(entries map[K]V) (K, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var taken []K
	for k := range entries {
		if _, exists := r.entries[k]; exists {
			taken = append(taken, k)
		}
	}
	if len(taken) > 0 {
		return slices.Min(taken), false
	}

	for k, v := range entries {
		r.entries[k] = v
	}
	var zero K
	return zero, true
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Update replaces the value for key with fn(current) under the write lock.
// Returns false without calling fn if the key does not exist.
//
// fn must not call back into the registry.
func (r *Registry[K, V]) Update(key K, fn func(V) V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	if !ok {
		return false
	}
	r.entries[key] = fn(v)
	return true
}

// Keys returns all keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in ascending key order until fn returns false.
// It iterates over a snapshot taken under the read lock.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	keys := make([]K, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !fn(k, snapshot[k]) {
			return
		}
	}
}

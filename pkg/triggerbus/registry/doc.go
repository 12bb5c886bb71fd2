// Package registry provides a thread-safe keyed table with insert-once
// semantics and atomic read-modify-write updates.
//
// It backs the triggerbus event table, where an entry is created once and
// afterwards only replaced wholesale by Update. Values are expected to be
// treated as immutable by readers: Update swaps in a new value rather than
// mutating the old one, so a value returned by Get stays valid after the
// lock is released.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	if !r.Add("one", 1) {
//	    // "one" was already present
//	}
//
//	r.Update("one", func(v int) int { return v + 1 })
//
//	v, ok := r.Get("one") // 2, true
//
// # Thread Safety
//
// All methods are safe for concurrent use. Range iterates over a snapshot,
// so the callback may call Add or Update without deadlocking.
package registry

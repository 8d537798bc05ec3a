package components

import (
	"sync/atomic"
	"time"
)

// PathResult is a completed path search. It is immutable once published.
type PathResult struct {
	Generation uint64
	Goal       Cell
	Waypoints  []Cell // Excludes the start cell, ends at Goal
	Failed     bool
	Expansions int
	Elapsed    time.Duration
}

// Mailbox is a single-slot cell carrying path results from a search worker
// to the simulation thread. Results are published by pointer swap, so a
// reader sees either the previous complete result or the new one.
type Mailbox struct {
	slot       atomic.Pointer[PathResult]
	requesting atomic.Bool
	generation atomic.Uint64
	dropped    atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Begin claims the in-flight slot and returns the generation the result must carry.
// Returns false if a request is already in flight.
func (m *Mailbox) Begin() (uint64, bool) {
	if !m.requesting.CompareAndSwap(false, true) {
		return 0, false
	}
	return m.generation.Add(1), true
}

// Deliver publishes a result and releases the in-flight slot.
// The result is stored before the flag clears so a new request never races an old delivery.
func (m *Mailbox) Deliver(r *PathResult) {
	m.slot.Store(r)
	m.requesting.Store(false)
}

// Take removes and returns the pending result, or nil if there is none.
// Results whose generation was superseded are discarded.
func (m *Mailbox) Take() *PathResult {
	r := m.slot.Swap(nil)
	if r == nil {
		return nil
	}
	if r.Generation != m.generation.Load() {
		m.dropped.Add(1)
		return nil
	}
	return r
}

// Invalidate marks any in-flight or pending result as stale.
func (m *Mailbox) Invalidate() {
	m.generation.Add(1)
}

// Requesting reports whether a search is in flight.
func (m *Mailbox) Requesting() bool {
	return m.requesting.Load()
}

// Generation returns the current request generation.
func (m *Mailbox) Generation() uint64 {
	return m.generation.Load()
}

// Dropped returns how many stale results have been discarded.
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}

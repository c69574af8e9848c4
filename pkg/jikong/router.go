// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import "sync"

// Router dispatches verified frames by type tag.
// Every frame replaces the last known frame for its tag and wakes the
// waiter registered for that tag, if there is one.
type Router struct {
	mu      sync.RWMutex
	last    map[byte]*Frame
	pending *PendingTable
}

// NewRouter creates a router resolving waiters from pending
func NewRouter(pending *PendingTable) *Router {
	return &Router{
		last:    make(map[byte]*Frame),
		pending: pending,
	}
}

// Route stores f and wakes its waiter. Returns true if a waiter was woken.
func (r *Router) Route(f *Frame) bool {
	tag := f.Type()

	r.mu.Lock()
	r.last[tag] = f
	r.mu.Unlock()

	return r.pending.Resolve(tag, f)
}

// Last returns the most recent frame received for tag
func (r *Router) Last(tag byte) (*Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.last[tag]
	return f, ok
}

// Reset forgets every stored frame
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = make(map[byte]*Frame)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"context"
	"sync"
	"time"
)

// PendingTable holds at most one waiter per response type tag
type PendingTable struct {
	mu      sync.Mutex
	waiters map[byte]*Waiter
}

// Waiter is a one-shot wait for the next frame of a tag
type Waiter struct {
	tag   byte
	table *PendingTable
	ch    chan waitResult
}

type waitResult struct {
	frame *Frame
	err   error
}

// NewPendingTable creates an empty table
func NewPendingTable() *PendingTable {
	return &PendingTable{waiters: make(map[byte]*Waiter)}
}

// Register creates the waiter for tag. It fails with ErrAlreadyWaiting while
// another waiter for the same tag is outstanding.
func (t *PendingTable) Register(tag byte) (*Waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.waiters[tag]; ok {
		return nil, ErrAlreadyWaiting
	}
	w := &Waiter{tag: tag, table: t, ch: make(chan waitResult, 1)}
	t.waiters[tag] = w
	return w, nil
}

// Resolve hands f to the waiter for tag, if any, and removes it.
// Returns true if a waiter was woken.
func (t *PendingTable) Resolve(tag byte, f *Frame) bool {
	t.mu.Lock()
	w, ok := t.waiters[tag]
	if ok {
		delete(t.waiters, tag)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	w.ch <- waitResult{frame: f}
	return true
}

// Remove drops w from the table if it is still the registered waiter
func (t *PendingTable) Remove(w *Waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.waiters[w.tag]; ok && cur == w {
		delete(t.waiters, w.tag)
	}
}

// CancelAll wakes every waiter with err and empties the table.
// Returns the number of waiters woken.
func (t *PendingTable) CancelAll(err error) int {
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = make(map[byte]*Waiter)
	t.mu.Unlock()

	for _, w := range waiters {
		w.ch <- waitResult{err: err}
	}
	return len(waiters)
}

// Len returns the number of outstanding waiters
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Tag returns the response type the waiter is registered for
func (w *Waiter) Tag() byte {
	return w.tag
}

// Wait blocks until the waiter is resolved, cancelled, timeout elapses or
// ctx is done. On timeout or context cancellation the waiter is removed from
// its table so the tag can be registered again.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) (*Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		return r.frame, r.err
	case <-timer.C:
		return w.abandon(ErrResponseTimeout)
	case <-ctx.Done():
		return w.abandon(ctx.Err())
	}
}

// abandon removes the waiter, preferring a result that raced the deadline
func (w *Waiter) abandon(err error) (*Frame, error) {
	w.table.Remove(w)
	select {
	case r := <-w.ch:
		return r.frame, r.err
	default:
		return nil, err
	}
}

package worker

import (
	"context"
	"sync"
)

// Mailbox is a single-slot handoff. Put overwrites an unconsumed value, so the
// consumer only ever sees the most recent one. Safe for concurrent use; Take is
// meant for a single consumer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	val    T
	full   bool
	closed bool
	drops  uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores v, replacing any value not yet taken. It reports false once the
// mailbox is closed.
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if m.full {
		m.drops++
	}
	m.val = v
	m.full = true
	m.cond.Signal()
	return true
}

// Take blocks until a value is available, the mailbox is closed or ctx is done.
// It reports false in the latter two cases.
func (m *Mailbox[T]) Take(ctx context.Context) (T, bool) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.full && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}
	return m.takeLocked()
}

// TryTake returns the pending value without blocking.
func (m *Mailbox[T]) TryTake() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takeLocked()
}

func (m *Mailbox[T]) takeLocked() (T, bool) {
	var zero T
	if m.closed || !m.full {
		return zero, false
	}
	v := m.val
	m.val = zero
	m.full = false
	return v, true
}

// Close wakes any waiter and discards the pending value.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var zero T
	m.val = zero
	m.full = false
	m.cond.Broadcast()
}

// Drops returns how many values were overwritten before being taken.
func (m *Mailbox[T]) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

// Package mailbox provides the unbounded FIFO queue that serializes all
// transition processing for a single store. One goroutine consumes it for
// the store's lifetime; producers never block.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Put and Get once the mailbox has been closed.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue, safe for concurrent use.
//
// It is deliberately unbounded: a bounded queue would either block or drop
// dispatches issued from inside a transition callback, and backpressure on
// rapid dispatchers is already provided by the single consumer draining
// one task at a time.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// signal wakes a blocked Get after a Put; done wakes it after Close.
	signal chan struct{}
	done   chan struct{}
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put appends v to the queue. It never blocks. After Close it returns
// ErrClosed and drops v.
func (m *Mailbox[T]) Put(v T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Get removes and returns the oldest queued item, blocking until one is
// available, the context is cancelled, or the mailbox is closed. Items
// already queued at Close time are not drained: Close means stop.
func (m *Mailbox[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return zero, ErrClosed
		}
		if len(m.items) > 0 {
			v := m.items[0]
			m.items = m.items[1:]
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-m.done:
			return zero, ErrClosed
		case <-m.signal:
		}
	}
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close marks the mailbox closed and wakes any blocked Get. It is
// idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.items = nil
	m.mu.Unlock()
	close(m.done)
}

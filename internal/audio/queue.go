package audio

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned when enqueueing after shutdown began
var ErrQueueClosed = errors.New("command queue is closed")

// CommandQueue carries commands from control goroutines to the audio goroutine.
// Producers append to an outbox under a short lock; the consumer swaps the outbox
// for its (empty) inbox and runs the batch without holding the lock.
type CommandQueue struct {
	mu     sync.Mutex
	outbox []Command
	inbox  []Command
	closed bool
	wake   chan struct{}
}

// NewCommandQueue creates an open queue
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{wake: make(chan struct{}, 1)}
}

// Enqueue appends cmd and wakes the consumer
func (q *CommandQueue) Enqueue(cmd Command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.outbox = append(q.outbox, cmd)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *CommandQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain runs fn over every queued command in enqueue order and returns how many ran.
// Only the consuming goroutine may call Drain.
func (q *CommandQueue) Drain(fn func(Command)) int {
	q.mu.Lock()
	q.outbox, q.inbox = q.inbox, q.outbox
	q.mu.Unlock()

	n := len(q.inbox)
	for _, cmd := range q.inbox {
		fn(cmd)
	}
	clear(q.inbox)
	q.inbox = q.inbox[:0]
	return n
}

// Wake delivers a signal after each enqueue and on Close
func (q *CommandQueue) Wake() <-chan struct{} {
	return q.wake
}

// Close rejects further enqueues. Commands already queued stay queued for Drain.
func (q *CommandQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close was called
func (q *CommandQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of commands waiting in the outbox
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.outbox)
}

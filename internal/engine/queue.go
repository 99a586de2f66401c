package engine

import "sync"

// msgQueue is an unbounded thread-safe FIFO of messages.
//
// It is unbounded so that Dispatch never blocks an effect goroutine or an
// external caller. Effects enqueue from many goroutines; only the Run loop
// dequeues, which is what serializes re-entry.
//
// The signal channel enables context-aware waiting in the Run loop.
type msgQueue[M any] struct {
	mu     sync.Mutex
	msgs   []M
	closed bool
	signal chan struct{} // buffered, size 1
}

func newMsgQueue[M any]() *msgQueue[M] {
	return &msgQueue[M]{
		msgs:   make([]M, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends msg. Returns false if the queue is closed.
func (q *msgQueue[M]) Enqueue(msg M) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.msgs = append(q.msgs, msg)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front message without blocking.
func (q *msgQueue[M]) TryDequeue() (M, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero M
	if len(q.msgs) == 0 {
		return zero, false
	}

	msg := q.msgs[0]
	q.msgs[0] = zero // release references held by the backing array
	if len(q.msgs) == 1 {
		q.msgs = q.msgs[:0]
	} else {
		q.msgs = q.msgs[1:]
	}
	return msg, true
}

// Wait returns a channel that fires when messages may be available.
// It is closed when the queue is closed.
func (q *msgQueue[M]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued messages.
func (q *msgQueue[M]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Closed reports whether Close has been called.
func (q *msgQueue[M]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further messages and wakes the waiter. Messages already
// queued are discarded by the Run loop.
func (q *msgQueue[M]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

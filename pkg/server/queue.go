package server

import (
	"errors"
	"sync"
)

var (
	// errQueueOverflow means the connection's pending writes exceeded
	// the configured cap. The connection must be dropped; silently
	// losing frames would break at-least-once delivery.
	errQueueOverflow = errors.New("write queue overflow")

	// errQueueClosed means the connection is shutting down.
	errQueueClosed = errors.New("write queue closed")
)

// writeQueue buffers encoded frames between producer goroutines (the
// reader goroutine's own replies plus fanout from other connections)
// and the single writer goroutine that drains to the socket. Capacity
// is counted in bytes, not frames, so one slow reader cannot pin an
// unbounded amount of memory.
type writeQueue struct {
	mu     sync.Mutex
	frames [][]byte
	queued int64
	max    int64
	closed bool

	// signal wakes the writer goroutine. Capacity one: a lost signal is
	// fine because the writer re-checks the queue before sleeping.
	signal chan struct{}
}

func newWriteQueue(max int64) *writeQueue {
	return &writeQueue{
		max:    max,
		signal: make(chan struct{}, 1),
	}
}

// push enqueues one encoded frame. Returns errQueueOverflow when the
// frame would push the buffered total past the cap.
func (q *writeQueue) push(frame []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	if q.queued+int64(len(frame)) > q.max {
		q.mu.Unlock()
		return errQueueOverflow
	}
	q.frames = append(q.frames, frame)
	q.queued += int64(len(frame))
	q.mu.Unlock()

	q.wake()
	return nil
}

// take hands the writer everything buffered so far and reports whether
// the queue has been closed. An empty batch with closed=true means the
// writer is done.
func (q *writeQueue) take() ([][]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	frames := q.frames
	q.frames = nil
	q.queued = 0
	return frames, q.closed
}

// close marks the queue closed and wakes the writer so it can drain
// and exit. Idempotent.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

func (q *writeQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

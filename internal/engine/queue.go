package engine

import (
	"sync"

	"github.com/roach88/billbook/internal/remote"
)

// patchQueue is a thread-safe FIFO of realtime patches.
//
// Unbounded so a burst of pushes never blocks the subscription reader.
// A buffered signal channel of size one lets Run wait with a context.
type patchQueue struct {
	mu      sync.Mutex
	patches []remote.Patch
	closed  bool
	signal  chan struct{}
}

func newPatchQueue() *patchQueue {
	return &patchQueue{
		patches: make([]remote.Patch, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a patch to the back of the queue.
// Returns false if the queue is closed.
func (q *patchQueue) Enqueue(p remote.Patch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.patches = append(q.patches, p)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front patch without blocking.
func (q *patchQueue) TryDequeue() (remote.Patch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.patches) == 0 {
		return remote.Patch{}, false
	}

	p := q.patches[0]
	// Release the record for GC.
	q.patches[0] = remote.Patch{}

	if len(q.patches) == 1 {
		q.patches = q.patches[:0]
	} else {
		q.patches = q.patches[1:]
	}

	return p, true
}

// Wait returns a channel that signals when patches may be available.
// It is closed when the queue is closed.
func (q *patchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *patchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.patches)
}

// Close stops accepting patches and wakes any waiter.
func (q *patchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

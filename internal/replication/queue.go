package replication

import (
	"sync"

	"github.com/roach88/shiftguard/internal/model"
)

// pushRequest asks for one push. A nil payload means "push whatever the
// local state is when the push runs".
type pushRequest struct {
	payload *model.Document
	version uint64
}

// pushQueue is a single-slot mailbox for pushes.
//
// Offering while a request is pending replaces it unless the pending one
// carries a newer version. The signal channel (buffered, size 1) lets the
// Run loop wait with select alongside its timers.
type pushQueue struct {
	mu      sync.Mutex
	pending *pushRequest
	signal  chan struct{}
}

func newPushQueue() *pushQueue {
	return &pushQueue{signal: make(chan struct{}, 1)}
}

// Offer stores req, coalescing with any pending request.
func (q *pushQueue) Offer(req pushRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending != nil && q.pending.version > req.version {
		return
	}
	q.pending = &req

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Take removes and returns the pending request.
func (q *pushQueue) Take() (pushRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == nil {
		return pushRequest{}, false
	}
	req := *q.pending
	q.pending = nil
	return req, true
}

// Pending reports whether a request is waiting.
func (q *pushQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != nil
}

// Drop discards any pending request whose version is at most version.
func (q *pushQueue) Drop(version uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending != nil && q.pending.version <= version {
		q.pending = nil
	}
}

// Wait returns a channel that signals when a request may be pending.
func (q *pushQueue) Wait() <-chan struct{} {
	return q.signal
}

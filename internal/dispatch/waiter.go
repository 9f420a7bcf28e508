package dispatch

import (
	"sync"
	"time"

	"github.com/nmtran/snapfeed-be/internal/metrics"
	"github.com/nmtran/snapfeed-be/internal/queue"
)

// waiterEntry tracks one outstanding reply-expecting call. The slot is a
// single-assignment container: it has capacity 1 and receives at most one
// response, sent only by whichever side wins the remove race.
type waiterEntry struct {
	createdAt time.Time
	deadline  time.Time
	slot      chan *queue.ResponseMessage
}

// WaiterTable maps outstanding correlation IDs to pending callers.
// Entries are created exclusively by the dispatcher call that owns them;
// the response listener only has lookup-and-remove rights.
type WaiterTable struct {
	mu      sync.Mutex
	waiters map[string]*waiterEntry
}

// NewWaiterTable creates an empty waiter table
func NewWaiterTable() *WaiterTable {
	return &WaiterTable{
		waiters: make(map[string]*waiterEntry),
	}
}

// register creates a waiter for the given correlation ID and returns its
// delivery slot. The ID must be fresh; registering is always paired with a
// later remove on every exit path of the owning call.
func (t *WaiterTable) register(correlationID string, timeout time.Duration) chan *queue.ResponseMessage {
	now := time.Now()
	entry := &waiterEntry{
		createdAt: now,
		deadline:  now.Add(timeout),
		slot:      make(chan *queue.ResponseMessage, 1),
	}

	t.mu.Lock()
	t.waiters[correlationID] = entry
	t.mu.Unlock()

	metrics.PendingWaiters.Inc()

	return entry.slot
}

// remove atomically looks up and deletes the entry for the correlation ID.
// Exactly one caller can succeed per ID: either the response listener
// (which then fills the slot) or the timeout path of the owning call.
func (t *WaiterTable) remove(correlationID string) (chan *queue.ResponseMessage, bool) {
	t.mu.Lock()
	entry, ok := t.waiters[correlationID]
	if ok {
		delete(t.waiters, correlationID)
	}
	t.mu.Unlock()

	if !ok {
		return nil, false
	}

	metrics.PendingWaiters.Dec()

	return entry.slot, true
}

// deliver routes a response to its waiter. It returns false when no waiter
// is registered for the correlation ID, which means the caller already
// timed out or the message is a stale redelivery.
func (t *WaiterTable) deliver(resp *queue.ResponseMessage) bool {
	slot, ok := t.remove(resp.CorrelationID)
	if !ok {
		return false
	}

	// The slot has capacity 1 and remove succeeds at most once per ID, so
	// this send never blocks.
	slot <- resp
	return true
}

// Len returns the number of outstanding waiters
func (t *WaiterTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Contains reports whether a waiter is registered for the correlation ID
func (t *WaiterTable) Contains(correlationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.waiters[correlationID]
	return ok
}

// Package watch runs the always-on observation side: producer loops that
// poll device signal sources, a bounded FIFO event queue, pure priority
// scorers, and the dispatcher that fans events out to handlers.
package watch

import (
	"context"

	"otto/pkg/protocol"
)

// Queue is a bounded FIFO of events. Producers push, the dispatcher pops;
// it is the only structure shared between them.
type Queue struct {
	ch chan protocol.Event
}

// NewQueue creates a Queue with the given capacity (256 when <= 0).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{ch: make(chan protocol.Event, capacity)}
}

// Push enqueues an event, blocking while the queue is full. Returns false
// if the context was cancelled before space opened up.
func (q *Queue) Push(ctx context.Context, ev protocol.Event) bool {
	select {
	case q.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Pop dequeues the oldest event, blocking while the queue is empty.
// Returns false if the context was cancelled first.
func (q *Queue) Pop(ctx context.Context) (protocol.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-ctx.Done():
		return protocol.Event{}, false
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

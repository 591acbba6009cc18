// Package bus carries accepted webhook events from the HTTP boundary to the
// dispatch pipeline through a single bounded queue.
package bus

import (
	"context"
	"time"
)

// InboundEvent is one webhook delivery accepted for processing.
type InboundEvent struct {
	AppID      string
	TypeName   string
	Data       map[string]interface{}
	MsgID      int64 // provider message id, 0 when absent
	ReceivedAt time.Time
}

// Queue is a bounded handoff between the webhook handler and the consumer
// loop. Publishing never blocks: when the queue is full the event is dropped
// and the caller decides how to report it.
type Queue struct {
	ch chan InboundEvent
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{ch: make(chan InboundEvent, capacity)}
}

// TryPublish enqueues ev without blocking. Returns false when the queue is full.
func (q *Queue) TryPublish(ev InboundEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Consume blocks until an event is available or ctx is done.
// The second return is false when ctx was cancelled.
func (q *Queue) Consume(ctx context.Context) (InboundEvent, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-ctx.Done():
		return InboundEvent{}, false
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

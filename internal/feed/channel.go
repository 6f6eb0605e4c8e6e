package feed

import (
	"errors"
	"sync"

	"backsim/internal/domain"
)

// ErrChannelClosed signals normal or forced stream termination. A run
// reaching it on receive transitions to DONE; it is not a fault.
var ErrChannelClosed = errors.New("event channel closed")

// EventChannel is a bounded FIFO conduit of events between exactly one
// producer (a feed) and one consumer (a run). Send blocks while the buffer
// is full, Receive blocks while it is empty; capacity zero degenerates to
// a synchronous rendezvous. Close is idempotent and unblocks both sides.
//
// Blocking sends are the backpressure mechanism: overflow is impossible
// because a producer suspends instead of dropping.
type EventChannel struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	capacity int
	queue    []*domain.Event

	// handoff carries the in-flight event for capacity-zero rendezvous.
	handoff *domain.Event

	closed bool
}

// NewEventChannel creates a channel with the given capacity. Negative
// capacities are treated as zero (synchronous hand-off).
func NewEventChannel(capacity int) *EventChannel {
	if capacity < 0 {
		capacity = 0
	}
	c := &EventChannel{capacity: capacity}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// Capacity returns the configured buffer capacity.
func (c *EventChannel) Capacity() int { return c.capacity }

// Len returns the number of buffered events.
func (c *EventChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.queue)
	if c.handoff != nil {
		n++
	}
	return n
}

// Send delivers an event to the consumer, blocking while the buffer is at
// capacity. It returns ErrChannelClosed once the channel is closed; a
// pending send is unblocked by Close with the same error.
func (c *EventChannel) Send(event *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity == 0 {
		return c.sendRendezvous(event)
	}

	for len(c.queue) >= c.capacity && !c.closed {
		c.notFull.Wait()
	}
	if c.closed {
		return ErrChannelClosed
	}
	c.queue = append(c.queue, event)
	c.notEmpty.Signal()
	return nil
}

// sendRendezvous hands the event directly to a receiver and does not
// return until the receiver has taken it. Caller holds c.mu.
func (c *EventChannel) sendRendezvous(event *domain.Event) error {
	for c.handoff != nil && !c.closed {
		c.notFull.Wait()
	}
	if c.closed {
		return ErrChannelClosed
	}

	c.handoff = event
	c.notEmpty.Signal()

	for c.handoff == event && !c.closed {
		c.notFull.Wait()
	}
	if c.handoff == event {
		// Closed before the receiver took it; the event is dropped.
		c.handoff = nil
		return ErrChannelClosed
	}
	return nil
}

// Receive returns the next event, blocking while the buffer is empty.
// Buffered events are still drained after Close; once the buffer is empty
// and the channel closed, it returns ErrChannelClosed.
func (c *EventChannel) Receive() (*domain.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity == 0 {
		for c.handoff == nil && !c.closed {
			c.notEmpty.Wait()
		}
		if c.handoff != nil {
			event := c.handoff
			c.handoff = nil
			c.notFull.Broadcast()
			return event, nil
		}
		return nil, ErrChannelClosed
	}

	for len(c.queue) == 0 && !c.closed {
		c.notEmpty.Wait()
	}
	if len(c.queue) > 0 {
		event := c.queue[0]
		c.queue = c.queue[1:]
		c.notFull.Signal()
		return event, nil
	}
	return nil, ErrChannelClosed
}

// Close terminates the stream. It is idempotent, and immediately unblocks
// any waiting sender or receiver with ErrChannelClosed. Buffered events
// remain receivable until drained.
func (c *EventChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
}

// Closed reports whether Close has been called.
func (c *EventChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package core

import (
	"sync"

	"github.com/google/uuid"
)

// Endpoint is the handle of one live connection and the unit of group membership.
// The events channel is never closed; readers select on Done instead.
type Endpoint struct {
	id        string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewEndpoint creates an endpoint with an outbound queue of the given size.
func NewEndpoint(buffer int) *Endpoint {
	if buffer <= 0 {
		buffer = 1
	}
	return &Endpoint{
		id:     uuid.NewString(),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// ID returns the process-unique endpoint identifier.
func (e *Endpoint) ID() string { return e.id }

// Events yields queued events in delivery order.
func (e *Endpoint) Events() <-chan Event { return e.events }

// Done is closed once the endpoint is closed.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// Close marks the endpoint dead. Safe to call many times.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// Closed reports whether Close has been called.
func (e *Endpoint) Closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// deliver queues ev without blocking. A full queue means the consumer cannot keep
// up, and the endpoint is closed rather than stalling the whole group.
func (e *Endpoint) deliver(ev Event) bool {
	if e.Closed() {
		return false
	}
	select {
	case e.events <- ev:
		return true
	default:
		e.Close()
		return false
	}
}

package hub

import "sync"

// outbox is a session's bounded outbound queue. The hub is the producer,
// the session's socket writer the single consumer. Pushes never block:
// when the queue is full the oldest non-critical event makes room, and a
// non-critical push into a queue of criticals is itself discarded.
// Critical events are always accepted while the outbox is open.
type outbox struct {
	mu     sync.Mutex
	queue  []Event
	max    int
	signal chan struct{}
	closed bool
	done   chan struct{}
}

func newOutbox(max int) *outbox {
	if max < 1 {
		max = 1
	}
	return &outbox{
		max:    max,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push enqueues an event. dropped reports whether any event (the oldest
// queued non-critical one, or the incoming one) was discarded to honour
// the bound; ok reports whether the incoming event was enqueued.
func (o *outbox) push(ev Event) (dropped, ok bool) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false, false
	}

	if len(o.queue) >= o.max {
		if idx := o.firstNonCriticalLocked(); idx >= 0 {
			o.queue = append(o.queue[:idx], o.queue[idx+1:]...)
			dropped = true
		} else if !ev.Critical {
			o.mu.Unlock()
			return true, false
		}
		// A critical event exceeds the bound rather than being lost.
	}

	o.queue = append(o.queue, ev)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return dropped, true
}

func (o *outbox) firstNonCriticalLocked() int {
	for i, queued := range o.queue {
		if !queued.Critical {
			return i
		}
	}
	return -1
}

// next blocks until an event is available or the outbox closes. Queued
// events drain even after close so a final presence frame can still go
// out before the writer stops.
func (o *outbox) next() (Event, bool) {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			ev := o.queue[0]
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return ev, true
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return Event{}, false
		}

		select {
		case <-o.signal:
		case <-o.done:
		}
	}
}

// close stops accepting events. Idempotent.
func (o *outbox) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()
	close(o.done)
}

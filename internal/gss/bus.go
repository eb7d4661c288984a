package gss

import "sync"

// EventBus is an ordered, unbounded queue from many producers to a single
// consumer. Publish never blocks on a slow consumer; events are delivered in
// arrival order on Events().
type EventBus struct {
	in     chan Event
	out    chan Event
	done   chan struct{}
	once   sync.Once
	logger Logger
}

// NewEventBus creates a bus and starts its delivery goroutine. Call Close to
// release it.
func NewEventBus(logger Logger) *EventBus {
	if logger == nil {
		logger = NewNopLogger()
	}
	b := &EventBus{
		in:     make(chan Event),
		out:    make(chan Event),
		done:   make(chan struct{}),
		logger: logger,
	}
	go b.pump()
	return b
}

// Publish enqueues ev. It is safe to call from any goroutine. Events
// published after Close are dropped.
func (b *EventBus) Publish(ev Event) {
	select {
	case b.in <- ev:
	case <-b.done:
	}
}

// Events returns the delivery channel. It is closed after Close.
func (b *EventBus) Events() <-chan Event {
	return b.out
}

// Close stops delivery. Undelivered events are discarded.
func (b *EventBus) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *EventBus) pump() {
	defer close(b.out)

	var queue []Event
	for {
		var out chan Event
		var next Event
		if len(queue) > 0 {
			out = b.out
			next = queue[0]
		}

		select {
		case ev := <-b.in:
			b.logger.Debug("event queued", "kind", ev.Kind().String(), "title", EventTitle(ev), "pending", len(queue)+1)
			queue = append(queue, ev)
		case out <- next:
			queue[0] = nil
			queue = queue[1:]
		case <-b.done:
			return
		}
	}
}

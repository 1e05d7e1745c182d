// Package broadcast provides the process-scoped channel that carries
// storage-change notifications between client sessions ("tabs") sharing one
// origin.
//
// A session publishes an Event after it overwrites a key in shared storage.
// Every other session subscribed to the bus receives it and reloads. Events
// published with an empty Source are manual dispatches and reach every
// subscriber, including the publisher's own session.
//
// Delivery is asynchronous. Each subscriber has its own queue drained by one
// goroutine, so a subscriber sees events in publish order and a slow handler
// never blocks the publisher.
package broadcast

import (
	"sync"
)

// Event describes a change to shared storage.
type Event struct {
	// Key is the storage key that changed. Empty means "unspecified",
	// subscribers should treat it as a change to anything they watch.
	Key string

	// Source identifies the publishing session. Empty for manual dispatch.
	Source string
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers fn for events not published by source. The returned
// function deregisters it and drops queued events. A call to fn already in
// progress is not interrupted.
func (b *Bus) Subscribe(source string, fn func(Event)) (unsubscribe func()) {
	sub := newSubscriber(source, fn)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			sub.stop()
		})
	}
}

// Publish queues ev for every matching subscriber and returns immediately.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if ev.Source != "" && ev.Source == sub.source {
			continue
		}
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(ev)
	}
}

// Dispatch publishes ev to every subscriber, regardless of source.
func (b *Bus) Dispatch(key string) {
	b.Publish(Event{Key: key})
}

// Close stops all subscribers. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

type subscriber struct {
	source string
	fn     func(Event)

	mu      sync.Mutex
	queue   []Event
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSubscriber(source string, fn func(Event)) *subscriber {
	return &subscriber{
		source: source,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.queue = nil
	s.mu.Unlock()
	close(s.done)
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.stopped || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.fn(ev)
		}
	}
}

// Package eventbus provides the per-session ordered event queue that
// carries stream events from the core to the front-end consumer, with
// optional passive subscribers for logging and tests.
package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lodestone-ai/lodestone/pkg/events"
)

// ErrBusClosed is returned by Publish and Next after Close.
var ErrBusClosed = errors.New("event bus closed")

// Bus delivers events in publication order to a single consumer via
// Next, and fans each event out to any passive subscribers attached
// at publication time. Late subscribers see no historical events.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []events.Event
	closed bool
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []events.Event
	closed bool
	done   chan struct{}
	ch     chan events.Event
}

// New returns an open bus.
func New() *Bus {
	b := &Bus{subs: make(map[int]*subscriber)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends ev to the consumer queue and all subscriber queues.
// It never blocks on slow consumers.
func (b *Bus) Publish(ev events.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, ev)
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.cond.Broadcast()
	b.mu.Unlock()

	for _, s := range subs {
		s.push(ev)
	}
	return nil
}

// Next blocks until an event is available, the context ends, or the
// bus is closed and drained.
func (b *Bus) Next(ctx context.Context) (events.Event, error) {
	// Wake the cond wait if the context ends first.
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 {
		if b.closed {
			return events.Event{}, ErrBusClosed
		}
		if err := ctx.Err(); err != nil {
			return events.Event{}, err
		}
		b.cond.Wait()
	}
	ev := b.queue[0]
	b.queue = b.queue[1:]
	return ev, nil
}

// Subscribe attaches a passive consumer. The returned channel carries
// events published after the call, in order. The cancel function
// detaches and closes the channel.
func (b *Bus) Subscribe() (<-chan events.Event, func()) {
	s := &subscriber{ch: make(chan events.Event), done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[id] = s
	b.mu.Unlock()

	go s.pump()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.close()
	}
	return s.ch, cancel
}

// Close ends the session stream. Pending events remain readable via
// Next until drained; subscribers are closed after their queues drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[int]*subscriber)
	b.cond.Broadcast()
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

func (s *subscriber) push(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, ev)
	s.cond.Signal()
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.cond.Signal()
}

// pump moves queued events to the channel so Publish never blocks on
// a slow subscriber.
func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.ch)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		closed := s.closed
		s.mu.Unlock()

		if closed {
			// Drain remaining events best-effort, but never hang on a
			// departed reader.
			select {
			case s.ch <- ev:
			case <-time.After(10 * time.Millisecond):
				close(s.ch)
				return
			}
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
}

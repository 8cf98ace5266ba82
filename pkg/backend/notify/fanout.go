// Package notify fans backend change signals out to subscribers.
//
// Each subscriber gets its own goroutine and a one-slot signal buffer, so
// Notify never blocks and bursts of changes collapse into a single callback.
// A change notification carries no payload: receivers re-read whatever they
// care about.
package notify

import (
	"sync"
)

// Origin identifies the context a change comes from. Subscribers registered
// with an origin do not hear their own changes through NotifyExcept.
type Origin uint64

// NoOrigin marks subscribers and changes that belong to no context.
const NoOrigin Origin = 0

// Fanout delivers change signals to subscribers. The zero value is ready to
// use.
type Fanout struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	origin Origin
	fn     func()
	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers fn for every change.
func (f *Fanout) Subscribe(fn func()) func() {
	return f.SubscribeFrom(NoOrigin, fn)
}

// SubscribeFrom registers fn for changes from origins other than origin.
// The returned function cancels the subscription and waits for an in-flight
// callback to return. It must not be called from fn.
func (f *Fanout) SubscribeFrom(origin Origin, fn func()) func() {
	s := &subscriber{
		origin: origin,
		fn:     fn,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(s.done)
		return func() {}
	}
	if f.subs == nil {
		f.subs = make(map[uint64]*subscriber)
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = s
	f.mu.Unlock()

	go s.run()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		s.cancel()
	}
}

// Notify signals every subscriber.
func (f *Fanout) Notify() {
	f.NotifyExcept(NoOrigin)
}

// NotifyExcept signals every subscriber whose origin differs from origin.
// NoOrigin signals everyone.
func (f *Fanout) NotifyExcept(origin Origin) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if origin != NoOrigin && s.origin == origin {
			continue
		}
		select {
		case s.signal <- struct{}{}:
		default:
			// A signal is already pending; it covers this change too.
		}
	}
}

// Len returns the number of active subscribers.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close cancels every subscription. Later subscriptions are inert.
func (f *Fanout) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.closed = true
	f.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
}

func (s *subscriber) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.signal:
			select {
			case <-s.stop:
				return
			default:
			}
			s.fn()
		}
	}
}

func (s *subscriber) cancel() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}

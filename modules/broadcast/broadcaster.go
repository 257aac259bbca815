// Package broadcast fans immutable snapshots out to any number of subscribers.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Broadcaster is a single-producer, multi-consumer channel of values.
// Every subscriber receives every value published after it subscribed, in
// publish order, starting with the latest value at subscription time.
// Published values are shared between subscribers and must not be mutated.
type Broadcaster[T any] struct {
	name      string
	subs      map[string]*Subscription[T]
	latest    T
	hasLatest bool
	closed    bool
	mu        sync.RWMutex
}

// New creates a Broadcaster. The name is only used for diagnostics.
func New[T any](name string) *Broadcaster[T] {
	return &Broadcaster[T]{
		name: name,
		subs: make(map[string]*Subscription[T]),
	}
}

// Name returns the broadcaster name.
func (b *Broadcaster[T]) Name() string {
	return b.name
}

// Publish records v as the latest value and queues it for every subscriber.
// Publish never blocks on slow subscribers.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = v
	b.hasLatest = true
	for _, sub := range b.subs {
		sub.enqueue(v)
	}
}

// Latest returns the most recently published value.
func (b *Broadcaster[T]) Latest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.hasLatest
}

// Subscribe registers a new subscriber. The subscription ends when ctx is
// done, when Close is called on it, or when the broadcaster is closed.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub := newSubscription(b)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		go sub.pump()
		sub.stop()
		return sub
	}
	if b.hasLatest {
		sub.enqueue(b.latest)
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go sub.pump()
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Publish calls are ignored.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*Subscription[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (b *Broadcaster[T]) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one consumer of a Broadcaster.
type Subscription[T any] struct {
	id    string
	owner *Broadcaster[T]
	out   chan T
	queue []T
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
	mu    sync.Mutex
}

func newSubscription[T any](owner *Broadcaster[T]) *Subscription[T] {
	return &Subscription[T]{
		id:    uuid.New().String(),
		owner: owner,
		out:   make(chan T),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// ID returns the unique subscription id.
func (s *Subscription[T]) ID() string {
	return s.id
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Done is closed when the subscription ends.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. Values still queued are dropped.
func (s *Subscription[T]) Close() {
	s.owner.remove(s.id)
	s.stop()
}

func (s *Subscription[T]) stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *Subscription[T]) enqueue(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump delivers queued values one at a time so a slow reader never blocks
// the publisher and never misses a value.
func (s *Subscription[T]) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}

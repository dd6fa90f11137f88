// Package eventbus provides a small typed publish/subscribe bus. The solver
// publishes its progress on it; metrics collectors subscribe.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel capacity of each subscriber.
const DefaultBuffer = 64

// TypedBus is a type-safe publish/subscribe bus for events of type T.
type TypedBus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	buffer  int
	dropped atomic.Uint64
	closed  bool
}

// NewTyped creates a new TypedBus with DefaultBuffer per subscriber.
func NewTyped[T any]() *TypedBus[T] { return NewTypedWithBuffer[T](DefaultBuffer) }

// NewTypedWithBuffer creates a TypedBus whose subscriber channels hold size events.
func NewTypedWithBuffer[T any](size int) *TypedBus[T] {
	if size < 0 {
		size = 0
	}
	return &TypedBus[T]{buffer: size}
}

// Publish sends the event to all subscribers. Delivery is non-blocking: a
// subscriber whose buffer is full misses the event.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were lost to full subscriber buffers.
func (b *TypedBus[T]) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a subscriber and returns its channel.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

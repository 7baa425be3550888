// Package events fans out in-process change notifications to subscribers.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Broadcaster delivers published values to every current subscriber.
// Callbacks run on the publishing goroutine and must not block.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]func(T)
	closed bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[uuid.UUID]func(T))}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := uuid.New()
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	fns := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscribers. Later publishes are ignored.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.subs)
}

// Chan subscribes with a buffered channel. When the buffer is full the oldest
// value is discarded so the newest is always delivered. The channel is never
// closed; stop reading after calling cancel.
func Chan[T any](b *Broadcaster[T], size int) (ch <-chan T, cancel func()) {
	if size < 1 {
		size = 1
	}
	c := make(chan T, size)
	unsub := b.Subscribe(func(v T) {
		for {
			select {
			case c <- v:
				return
			default:
			}
			select {
			case <-c:
			default:
			}
		}
	})
	return c, unsub
}

// Package events is a small in-process publish/subscribe channel used to
// notify sibling components of session and preference changes.
package events

import "sync"

// Bus delivers every published value to all current subscribers,
// synchronously and in subscription order.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(T)
	order  []int
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is idempotent.
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish calls every subscriber with v. Subscribers may unsubscribe from
// inside the callback.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	fns := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of active subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

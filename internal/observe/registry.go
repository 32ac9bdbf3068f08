// Package observe provides the listener registry behind every
// subscribe/unsubscribe contract in the client.
package observe

import (
	"sync"
	"sync/atomic"
)

type listener[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Registry holds a set of listeners notified in registration order.
// The zero value is ready to use.
type Registry[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]*listener[T]
	order     []uint64
}

// Add registers fn and returns a func that removes it. Once remove has
// returned, fn is not invoked again. Calling remove more than once is a no-op.
func (r *Registry[T]) Add(fn func(T)) (remove func()) {
	l := &listener[T]{fn: fn}
	l.active.Store(true)

	r.mu.Lock()
	if r.listeners == nil {
		r.listeners = make(map[uint64]*listener[T])
	}
	r.nextID++
	id := r.nextID
	r.listeners[id] = l
	r.order = append(r.order, id)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Store(false)

			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.listeners, id)
			for i, v := range r.order {
				if v == id {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Notify calls every active listener with v. Listeners run on the calling
// goroutine, outside the registry lock, so they may add or remove listeners.
func (r *Registry[T]) Notify(v T) {
	r.mu.Lock()
	snapshot := make([]*listener[T], 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.listeners[id])
	}
	r.mu.Unlock()

	for _, l := range snapshot {
		if l.active.Load() {
			l.fn(v)
		}
	}
}

// Len returns the number of registered listeners.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Package queue holds the request queue primitives used between producers
// (input handlers, background tasks) and the tick goroutine.
package queue

import "sync"

// Concurrent is a mutex guarded queue drained once per tick. Any goroutine
// may Push; only the tick goroutine should call GetAndEmpty.
type Concurrent[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *Concurrent[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

func (q *Concurrent[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetAndEmpty returns every queued item in push order and leaves the queue
// empty. Each item is returned by exactly one call.
func (q *Concurrent[T]) GetAndEmpty() []T {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

// Clear drops every queued item.
func (q *Concurrent[T]) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Swap returns the current contents of *q and installs a fresh empty slice,
// so systems appending during this tick write to next tick's queue.
func Swap[T any](q *[]T) []T {
	out := *q
	*q = make([]T, 0, cap(out))
	return out
}

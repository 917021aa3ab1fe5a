// Package container provides concurrency-aware containers shared by the
// tracing engine.
package container

import (
	"sync"
	"sync/atomic"
)

const initialListCapacity = 16

// AppendOnlyList is a generic id-to-object table that supports only two
// operations: appending an element, which assigns it the next dense id, and
// getting an element by id. Elements are never removed or replaced, so the
// object returned for an id stays the same for the lifetime of the list.
//
// Appends serialize on an internal lock. Gets are lock-free and safe to call
// from any number of goroutines concurrently with appends.
type AppendOnlyList[T any] struct {
	mu    sync.Mutex
	store atomic.Pointer[[]T]
	count atomic.Int64
}

// NewAppendOnlyList creates an empty AppendOnlyList.
func NewAppendOnlyList[T any]() *AppendOnlyList[T] {
	l := &AppendOnlyList[T]{}
	backing := make([]T, initialListCapacity)
	l.store.Store(&backing)

	return l
}

// Append adds v to the list and returns the id assigned to it. Ids are
// dense, starting at 0.
func (l *AppendOnlyList[T]) Append(v T) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := int(l.count.Load())
	backing := *l.store.Load()

	if id == len(backing) {
		backing = l.grow(backing)
	}

	// The slot must be fully written before the count is published, so a
	// reader that observes the new count also observes the slot.
	backing[id] = v
	l.count.Store(int64(id + 1))

	return id
}

// grow doubles the backing array. The new array is fully populated with the
// old entries before it is published, so concurrent readers observe either
// the old array or the completely-copied new one.
func (l *AppendOnlyList[T]) grow(old []T) []T {
	backing := make([]T, len(old)*2)
	copy(backing, old)
	l.store.Store(&backing)

	return backing
}

// Get returns the element with the given id. The second return value is
// false if no element with that id has been appended. Get never blocks.
func (l *AppendOnlyList[T]) Get(id int) (T, bool) {
	// The count must be read before the store: a reader that sees count n
	// is guaranteed to see a backing array of at least n initialized slots.
	n := l.count.Load()
	if id < 0 || int64(id) >= n {
		var zero T
		return zero, false
	}

	backing := *l.store.Load()

	return backing[id], true
}

// Len returns the number of elements appended so far.
func (l *AppendOnlyList[T]) Len() int {
	return int(l.count.Load())
}

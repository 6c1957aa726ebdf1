package buffer

import (
	"sync"
)

// Buffer holds items until they are drained or discarded.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

func New[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

// Add appends items in order.
func (b *Buffer[T]) Add(items ...T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)
}

// Len reports how many items are held.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Drain returns the held items and empties the buffer.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()
	return items
}

// Reset discards the held items.
func (b *Buffer[T]) Reset() {
	b.Drain()
}

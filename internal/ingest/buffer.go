package ingest

import "sync"

// Buffer is a thread-safe ring buffer that doubles its capacity when it
// approaches full, so a slow database flush never drops events. It sits
// between an event producer and the batch Writer.
type Buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int // read position
	tail   int // write position
	count  int
	closed bool

	accepted int64
	drained  int64
	resizes  int
}

// growAt is the fill percentage that triggers a capacity doubling.
const growAt = 75

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer[T]{items: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push adds an item, growing the buffer if needed.
// Returns false once the buffer is closed.
func (b *Buffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if (b.count+1)*100 >= len(b.items)*growAt {
		b.grow()
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % len(b.items)
	b.count++
	b.accepted++
	b.cond.Signal()
	return true
}

// Pop removes one item, blocking until one is available or the buffer is
// closed. The second return is false only when closed and empty.
func (b *Buffer[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// Drain removes up to max items without blocking (all items if max <= 0).
func (b *Buffer[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.popLocked()
	}
	return out
}

// Close marks the buffer closed. Pushes are rejected afterwards; readers
// drain remaining items and then observe the close.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *Buffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// BufferStats describes buffer throughput.
type BufferStats struct {
	Count    int
	Capacity int
	Accepted int64
	Drained  int64
	Resizes  int
}

// Stats returns a snapshot of throughput counters.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:    b.count,
		Capacity: len(b.items),
		Accepted: b.accepted,
		Drained:  b.drained,
		Resizes:  b.resizes,
	}
}

// popLocked removes the head item. Caller holds the lock and has checked count > 0.
func (b *Buffer[T]) popLocked() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero // release reference
	b.head = (b.head + 1) % len(b.items)
	b.count--
	b.drained++
	return item
}

// grow doubles capacity, unrolling the ring into the new slice.
// Caller holds the lock.
func (b *Buffer[T]) grow() {
	next := make([]T, len(b.items)*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.items[b.head:b.tail])
		} else {
			n := copy(next, b.items[b.head:])
			copy(next[n:], b.items[:b.tail])
		}
	}
	b.items = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}

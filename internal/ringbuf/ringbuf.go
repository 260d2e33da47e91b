// Package ringbuf provides a fixed-capacity circular buffer. It backs the
// server console history and the TUI resource charts.
package ringbuf

// RingBuffer is a fixed-capacity circular buffer. The oldest element is
// overwritten once the buffer is full. It is not safe for concurrent use.
type RingBuffer[T any] struct {
	data  []T
	head  int
	count int
}

// New creates a ring buffer with the given capacity (at least 1).
func New[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push adds an element, overwriting the oldest if full.
func (r *RingBuffer[T]) Push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Len returns the number of stored elements.
func (r *RingBuffer[T]) Len() int { return r.count }

// Cap returns the buffer capacity.
func (r *RingBuffer[T]) Cap() int { return len(r.data) }

// Last returns the most recent element, or the zero value if empty.
func (r *RingBuffer[T]) Last() T {
	var zero T
	if r.count == 0 {
		return zero
	}
	idx := r.head - 1
	if idx < 0 {
		idx = len(r.data) - 1
	}
	return r.data[idx]
}

// Slice returns all elements in chronological order (oldest first).
func (r *RingBuffer[T]) Slice() []T {
	return r.Tail(r.count)
}

// Tail returns the n most recent elements, oldest first. n <= 0 or n larger
// than Len returns everything.
func (r *RingBuffer[T]) Tail(n int) []T {
	if r.count == 0 {
		return nil
	}
	if n <= 0 || n > r.count {
		n = r.count
	}
	result := make([]T, n)
	start := r.head - n
	if start < 0 {
		start += len(r.data)
	}
	for i := range n {
		result[i] = r.data[(start+i)%len(r.data)]
	}
	return result
}

// Resize changes the capacity, preserving the most recent elements that fit.
func (r *RingBuffer[T]) Resize(newCap int) {
	if newCap <= 0 {
		newCap = 1
	}
	if newCap == len(r.data) {
		return
	}
	old := r.Tail(newCap)
	r.data = make([]T, newCap)
	r.head = 0
	r.count = 0
	for _, v := range old {
		r.Push(v)
	}
}

// Reset clears all elements.
func (r *RingBuffer[T]) Reset() {
	clear(r.data)
	r.head = 0
	r.count = 0
}

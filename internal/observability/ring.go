package observability

// Ring is a fixed-capacity FIFO sample buffer. Appending past capacity
// evicts the oldest entry; the buffer never grows and never blocks.
//
// Ring is not safe for concurrent use; callers hold their own locks.
type Ring[T any] struct {
	buf  []T
	head int
	size int
}

// NewRing creates a ring with the given capacity. Capacities below 1 are
// treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append adds v to the ring, evicting the oldest entry if the ring is full.
func (r *Ring[T]) Append(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Values returns the entries in insertion order, oldest first. The returned
// slice is a copy.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

package buffer

// RingBuffer is a fixed-size window that overwrites the oldest element
// when full, keeping the most recent Cap() elements in insertion order.
//
// head and tail are monotonically increasing write positions; the
// physical slot of logical position p is p % len(buf).
type RingBuffer[T any] struct {
	buf        []T
	head, tail int64
}

// RingN creates a new RingBuffer with the specified capacity.
// It panics if size is not positive.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &RingBuffer[T]{buf: make([]T, size)}
}

// Add appends t. If the buffer is full the oldest element is dropped and
// returned with evicted set to true.
func (rb *RingBuffer[T]) Add(t T) (old T, evicted bool) {
	size := int64(len(rb.buf))
	slot := rb.tail % size
	if rb.tail-rb.head == size {
		old, evicted = rb.buf[slot], true
		rb.head++
	}
	rb.buf[slot] = t
	rb.tail++
	return old, evicted
}

// Write appends every element of p in order and returns len(p).
func (rb *RingBuffer[T]) Write(p []T) int {
	for _, t := range p {
		rb.Add(t)
	}
	return len(p)
}

// Len returns the number of elements currently in the buffer.
func (rb *RingBuffer[T]) Len() int {
	return int(rb.tail - rb.head)
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf)
}

// Full reports whether the next Add evicts an element.
func (rb *RingBuffer[T]) Full() bool {
	return rb.Len() == len(rb.buf)
}

// At returns the i-th element, 0 being the oldest. It panics if i is out
// of range.
func (rb *RingBuffer[T]) At(i int) T {
	if i < 0 || i >= rb.Len() {
		panic("buffer: ring index out of range")
	}
	return rb.buf[(rb.head+int64(i))%int64(len(rb.buf))]
}

// Items returns a copy of all elements, oldest first.
func (rb *RingBuffer[T]) Items() []T {
	return rb.Last(rb.Len())
}

// Last returns a copy of the newest n elements, oldest first. If fewer
// than n elements are buffered, all of them are returned.
func (rb *RingBuffer[T]) Last(n int) []T {
	size := rb.Len()
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := rb.tail - int64(n)
	bufsz := int64(len(rb.buf))
	h := int(start % bufsz)
	if c := copy(out, rb.buf[h:]); c < n {
		copy(out[c:], rb.buf[:n-c])
	}
	return out
}

// Reset discards all buffered elements.
func (rb *RingBuffer[T]) Reset() {
	clear(rb.buf)
	rb.head = 0
	rb.tail = 0
}

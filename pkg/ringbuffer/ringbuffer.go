// Package ringbuffer provides a fixed-capacity circular buffer with O(1)
// push-and-evict semantics.
package ringbuffer

import "math"

// Buffer holds up to cap float64 values, evicting the oldest on overflow.
type Buffer struct {
	data  []float64
	head  int
	count int
}

// New creates a buffer with the given capacity. Capacity must be positive.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends a value, evicting the oldest when full.
func (b *Buffer) Push(v float64) {
	if b.count < len(b.data) {
		b.data[(b.head+b.count)%len(b.data)] = v
		b.count++
		return
	}
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
}

// Len returns the number of stored values.
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Last returns the most recently pushed value, or 0 when empty.
func (b *Buffer) Last() float64 {
	if b.count == 0 {
		return 0
	}
	return b.data[(b.head+b.count-1)%len(b.data)]
}

// Values returns the stored values oldest-first as a fresh slice.
func (b *Buffer) Values() []float64 {
	out := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.data[(b.head+i)%len(b.data)]
	}
	return out
}

// StdDev returns the population standard deviation of the stored values,
// or 0 when fewer than two values are stored.
func (b *Buffer) StdDev() float64 {
	if b.count < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < b.count; i++ {
		sum += b.data[(b.head+i)%len(b.data)]
	}
	mean := sum / float64(b.count)
	var ss float64
	for i := 0; i < b.count; i++ {
		d := b.data[(b.head+i)%len(b.data)] - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(b.count))
}

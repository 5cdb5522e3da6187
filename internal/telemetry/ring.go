package telemetry

import "iter"

// ring is a bounded buffer that overwrites its oldest element once full.
// It is not synchronized; the owning sink holds its mutex around every call.
type ring[T any] struct {
	buf      []T
	head     int // oldest element once the buffer is full
	capacity int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{capacity: capacity}
}

func (r *ring[T]) push(v T) {
	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.capacity
}

func (r *ring[T]) len() int { return len(r.buf) }

// all yields the elements oldest first.
func (r *ring[T]) all() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range len(r.buf) {
			if !yield(r.buf[(r.head+i)%len(r.buf)]) {
				return
			}
		}
	}
}

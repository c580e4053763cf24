// Package ring implements a lock-free cyclic cursor over a fixed slice:
// each call to Next returns the next element, wrapping back to the start
// after the last one. It is the building block the scheduler uses to turn
// a pre-expanded backend list into a round-robin sequence without taking
// a lock on every request.
package ring

import "sync/atomic"

// Ring cycles through values in order, forever. The zero value is not
// usable; construct with New.
type Ring[T any] struct {
	values []T
	next   atomic.Uint64
}

// New builds a Ring over values. values is copied defensively so later
// mutation by the caller can't race with concurrent Next calls.
func New[T any](values []T) *Ring[T] {
	cp := make([]T, len(values))
	copy(cp, values)
	return &Ring[T]{values: cp}
}

// Len returns the number of values in the cycle.
func (r *Ring[T]) Len() int {
	return len(r.values)
}

// Next returns the next value in the cycle. With a single value it always
// returns that value without touching the counter, avoiding needless
// contention on the common one-backend case.
func (r *Ring[T]) Next() T {
	if len(r.values) == 1 {
		return r.values[0]
	}
	i := r.next.Add(1) - 1
	return r.values[i%uint64(len(r.values))]
}

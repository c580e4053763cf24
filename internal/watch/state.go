// Package watch implements a small observable-value primitive: one writer
// sets successive values, any number of readers can fetch the current
// value or block until the next change, without polling. It plays the
// role Tokio's watch channel plays in the original project, and is built
// the same way the retrieved Kubernetes API server code broadcasts a
// lifecycle signal — a channel that is closed, never sent on, so every
// waiter wakes regardless of when it started watching — generalized here
// to repeat across many transitions instead of firing once.
package watch

import "sync"

// Value holds the latest value of type T plus a channel that closes the
// moment a new value replaces it.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	changed chan struct{}
}

// New returns a Value initialized to v.
func New[T any](v T) *Value[T] {
	return &Value[T]{current: v, changed: make(chan struct{})}
}

// Set replaces the current value and wakes every goroutine waiting on the
// channel returned by a prior Watch call.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = next
	close(v.changed)
	v.changed = make(chan struct{})
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Watch returns the current value and a channel that closes the next
// time Set is called. Compare against the old value; Set can coalesce
// several rapid writes into one wakeup per watcher, so re-read Get (or
// the returned value) rather than assuming the wakeup means exactly one
// transition happened.
func (v *Value[T]) Watch() (T, <-chan struct{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.changed
}

// Package lazy provides a value that is computed once on first use and can be
// explicitly invalidated.
package lazy

import "sync"

// Value holds a lazily computed T. The zero Value is ready to use.
type Value[T any] struct {
	mu    sync.Mutex
	set   bool
	value T
	err   error
}

// Get returns the cached value, computing it with fn if nothing is cached.
// Errors are cached too, so a failed detection is not retried until
// Invalidate is called.
func (v *Value[T]) Get(fn func() (T, error)) (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.set {
		v.value, v.err = fn()
		v.set = true
	}
	return v.value, v.err
}

// Peek returns the cached value without computing it.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.value, v.set && v.err == nil
}

// Set stores value, replacing whatever is cached.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = value
	v.err = nil
	v.set = true
}

// SetIfAbsent stores value only if nothing is cached yet. It reports whether
// the value was stored.
func (v *Value[T]) SetIfAbsent(value T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.set && v.err == nil {
		return false
	}
	v.value = value
	v.err = nil
	v.set = true
	return true
}

// Invalidate drops the cached value so the next Get recomputes it.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.value = zero
	v.err = nil
	v.set = false
}

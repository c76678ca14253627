// Package handles provides a thread-safe registry mapping native resource
// handles to Go objects.
//
// Native code identifies resources only by small integers and fires callbacks
// carrying those integers from threads Go does not control. Callback
// trampolines resolve the integer back to the Go wrapper through a Registry.
// A handle must be removed before the native side is allowed to recycle it, so
// at most one wrapper is registered per live handle.
package handles

import (
	"sync"
)

// Handle is an opaque identifier assigned by the native layer.
// Values <= 0 are never valid handles.
type Handle = int32

// Registry maps handles to values of type T.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[Handle]T
	nextID  Handle
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[Handle]T),
		nextID:  1,
	}
}

// Put registers v under a handle assigned by the native layer.
// Returns false, leaving the existing entry in place, if the handle is
// already registered or not a valid handle.
//
// Thread-safe.
func (r *Registry[T]) Put(h Handle, v T) bool {
	if h <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[h]; ok {
		return false
	}
	r.entries[h] = v
	return true
}

// Insert stores v under a freshly allocated handle and returns it.
// Used by in-process backends that own their handle space.
//
// Thread-safe.
func (r *Registry[T]) Insert(v T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := r.nextID
		r.nextID++
		if r.nextID <= 0 {
			r.nextID = 1
		}
		if _, taken := r.entries[id]; !taken {
			r.entries[id] = v
			return id
		}
	}
}

// Get retrieves the value registered for h.
//
// Thread-safe.
func (r *Registry[T]) Get(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[h]
	return v, ok
}

// Remove unregisters h and returns the value it held.
// Removing an unknown handle is a no-op.
//
// Thread-safe.
func (r *Registry[T]) Remove(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
	}
	return v, ok
}

// Len returns the number of currently registered handles.
// Useful for debugging and testing leaks.
//
// Thread-safe.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Each calls fn for a snapshot of the registered entries.
// fn runs without the registry lock held, so it may call Remove.
// Iteration stops when fn returns false.
func (r *Registry[T]) Each(fn func(Handle, T) bool) {
	r.mu.RLock()
	snapshot := make(map[Handle]T, len(r.entries))
	for h, v := range r.entries {
		snapshot[h] = v
	}
	r.mu.RUnlock()

	for h, v := range snapshot {
		if !fn(h, v) {
			return
		}
	}
}

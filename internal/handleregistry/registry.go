// Package handleregistry implements the generic native-callback registry
// SPEC_FULL.md section 5 adds for the Cronet and Foundation adapters: a
// mutex-guarded table from an opaque integer handle to the Go-side
// per-request state a native callback needs to resume, grounded on the
// teacher's healthcheck.Checker/forward.Watchdog pattern of a mutex-guarded
// map with short critical sections and callbacks run outside the lock.
//
// Native callbacks (an NSURLSessionDataDelegate method invoked from
// Objective-C, a UrlRequest.Callback invoked from a JNI upcall, a WinHTTP
// status callback invoked from a DLL thread) cross into Go holding only an
// integer handle; this registry is what turns that handle back into the
// *corectx.Context the rest of the adapter understands.
package handleregistry

import (
	"sync"
	"sync/atomic"
)

// Registry assigns monotonically increasing handles to values of type T
// and looks them up by handle. Safe for concurrent use; callbacks may
// arrive on arbitrary native threads.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[uint64]T
	next  atomic.Uint64
}

// New returns an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[uint64]T)}
}

// Register stores v and returns the handle assigned to it. Handles start
// at 1; 0 is reserved so callers can use it as a "no handle yet" sentinel
// (e.g. before a native call that returns a task/session id has completed).
func (r *Registry[T]) Register(v T) uint64 {
	h := r.next.Add(1)
	r.mu.Lock()
	r.items[h] = v
	r.mu.Unlock()
	return h
}

// Get returns the value registered under handle, or the zero value and
// false if no such handle is registered (already released, or never
// issued — a native layer bug, not expected in normal operation).
func (r *Registry[T]) Get(handle uint64) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[handle]
	return v, ok
}

// Release removes handle from the registry. Safe to call more than once;
// subsequent calls are no-ops.
func (r *Registry[T]) Release(handle uint64) {
	r.mu.Lock()
	delete(r.items, handle)
	r.mu.Unlock()
}

// Len reports the number of currently registered handles, for tests and
// diagnostics.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

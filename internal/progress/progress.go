// Package progress implements the ProgressState and CancelToken primitives
// from SPEC_FULL.md section 3: atomic counters and a cancellation flag
// shared between a native callback (the writer) and the caller's progress
// callback and cancellation checks (the readers).
package progress

import (
	"sync"
	"sync/atomic"
)

// Callback mirrors frakt.ProgressCallback without importing the root
// package (which itself depends on internal packages during construction),
// avoiding an import cycle.
type Callback func(transferred uint64, total *uint64)

// State tracks bytes transferred and, once known, the expected total, and
// invokes Callback on every increment. Increments are serialized so the
// callback is never invoked concurrently with itself (section 3).
type State struct {
	transferred atomic.Uint64
	total       atomic.Pointer[uint64]
	cb          Callback
	mu          sync.Mutex
}

// New returns a State that calls cb (which may be nil) on every increment.
func New(cb Callback) *State {
	return &State{cb: cb}
}

// SetTotal records the expected total byte count once it becomes known
// (e.g. from a Content-Length header). Subsequent calls are ignored; the
// first caller wins, matching "total_expected: set once when known".
func (s *State) SetTotal(total uint64) {
	s.total.CompareAndSwap(nil, &total)
	s.invoke()
}

// Add increments the transferred counter by n and invokes the callback.
// Calls are serialized with a mutex so the callback never overlaps itself,
// even if two goroutines race to report progress.
func (s *State) Add(n uint64) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferred.Add(n)
	s.invokeLocked()
}

func (s *State) invoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invokeLocked()
}

func (s *State) invokeLocked() {
	if s.cb == nil {
		return
	}
	s.cb(s.transferred.Load(), s.total.Load())
}

// Transferred returns the current monotonically non-decreasing byte count.
func (s *State) Transferred() uint64 { return s.transferred.Load() }

// Total returns the expected total, or nil if not yet known.
func (s *State) Total() *uint64 { return s.total.Load() }

package progress

import (
	"sync"
	"sync/atomic"
)

// CancelToken is a binary flip flag plus a waker set: once Cancel is
// called, every goroutine blocked on Done() wakes, and IsCancelled becomes
// permanently true. Flipping the token is what the rest of the pipeline
// uses to abort pending native I/O promptly (SPEC_FULL.md section 3/5).
type CancelToken struct {
	once      sync.Once
	done      chan struct{}
	cancelled atomic.Bool
}

// NewCancelToken returns a ready-to-use, not-yet-cancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel flips the token. Safe to call more than once or concurrently;
// only the first call has an effect.
func (c *CancelToken) Cancel() {
	c.once.Do(func() {
		c.cancelled.Store(true)
		close(c.done)
	})
}

// Done returns a channel that is closed once Cancel has been called,
// suitable for use in a select alongside native-callback-driven channels.
func (c *CancelToken) Done() <-chan struct{} { return c.done }

// IsCancelled reports whether Cancel has been called.
func (c *CancelToken) IsCancelled() bool { return c.cancelled.Load() }

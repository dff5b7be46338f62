// Package bodychan implements the BodyChannel primitive from SPEC_FULL.md
// section 3: a single-producer/single-consumer bounded FIFO of byte chunks
// terminated by either a clean close or a terminal error, never both.
//
// Every engine adapter's pump goroutine is the sole producer on a Channel;
// the caller draining Response.Body is the sole consumer. That single
// writer/single reader contract is what lets the channel itself need no
// additional locking (SPEC_FULL.md section 5).
package bodychan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Send when the channel has already been closed
// or failed by a previous call, enforcing the "once Err or close is sent,
// no further items appear" invariant.
var ErrClosed = errors.New("bodychan: channel already closed")

// item is a single slot: either a data chunk, or a terminal marker (err may
// be nil for a clean close).
type item struct {
	chunk    []byte
	err      error
	terminal bool
}

// Channel is a bounded single-producer/single-consumer queue of byte
// chunks. The zero value is not usable; construct with New.
//
// Ordering is enforced by construction: Fail and Close push their terminal
// marker onto the same buffered channel chunks travel through, so a
// consumer draining in FIFO order always sees every previously-queued
// chunk before the terminal marker, never a terminal marker racing ahead
// of buffered data.
type Channel struct {
	items  chan item
	closed atomic.Bool
	once   sync.Once

	termMu   sync.Mutex
	termSeen bool
	termErr  error
}

// New returns a Channel buffering capacity+1 items. Send may fill every
// slot, the extra one included, so a Fail or Close issued while the buffer
// is full waits until the consumer takes an item. Capacity must be at
// least 1; section 3 recommends 32 as a typical default.
func New(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{items: make(chan item, capacity+1)}
}

// Send pushes a successful chunk. It blocks (suspension point) when the
// channel is at capacity, providing the backpressure SPEC_FULL.md section 3
// requires, and returns ErrClosed if the channel was already closed.
// ctx cancellation unblocks a pending Send with ctx.Err().
func (c *Channel) Send(ctx context.Context, chunk []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.items <- item{chunk: chunk}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail pushes a terminal error. Only the first call to Fail or Close has an
// effect, matching the "terminal error observed at most once" guarantee
// (SPEC_FULL.md section 4.1, guarantee 4).
func (c *Channel) Fail(err error) {
	c.once.Do(func() {
		c.closed.Store(true)
		c.items <- item{err: err, terminal: true}
	})
}

// Close closes the channel cleanly, signalling end of stream with no
// error.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		c.items <- item{terminal: true}
	})
}

// Next blocks (a suspension point) until a chunk, a terminal error, or
// clean close is available, or ctx is cancelled.
//
// Returns (chunk, nil, false) for a data chunk, (nil, err, true) for a
// terminal error, and (nil, nil, true) for a clean end of stream. Once a
// terminal result has been returned, every subsequent call returns the same
// terminal result again (it does not re-block).
func (c *Channel) Next(ctx context.Context) ([]byte, error, bool) {
	c.termMu.Lock()
	if c.termSeen {
		err := c.termErr
		c.termMu.Unlock()
		return nil, err, true
	}
	c.termMu.Unlock()

	select {
	case it, ok := <-c.items:
		if !ok {
			return nil, nil, true
		}
		if it.terminal {
			c.termMu.Lock()
			c.termSeen = true
			c.termErr = it.err
			c.termMu.Unlock()
			return nil, it.err, true
		}
		return it.chunk, nil, false
	case <-ctx.Done():
		return nil, ctx.Err(), true
	}
}

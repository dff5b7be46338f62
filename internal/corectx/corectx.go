// Package corectx implements the per-request Context from SPEC_FULL.md
// section 3/5: the mutable state an Engine adapter creates when a request
// is dispatched and releases once the header event has fired and the body
// channel is fully drained or errored.
//
// A Context ties together the four primitives native callbacks and the
// caller's goroutine communicate through: a header-ready future, a
// bodychan.Channel for streamed chunks, a progress.State, and a
// progress.CancelToken. Native callbacks only ever push into these; they
// never run caller code directly (section 9, "callback<->async bridging").
package corectx

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nvm/fraktgo/internal/bodychan"
	"github.com/nvm/fraktgo/internal/progress"
)

// Header is the minimal header-event payload a Context publishes once the
// engine has resolved status+headers. It is a plain struct here (rather
// than the root package's *Header) so this package has no dependency on
// the root package, avoiding an import cycle; adapters convert at the
// boundary.
type Header struct {
	Status  int
	Headers any // *frakt.Header, boxed to avoid the import cycle
	URL     string
}

// Context is the per-request state shared between one native callback
// producer and one caller consumer. Construct with New; release exactly
// once with Release when the request is fully torn down.
type Context struct {
	Body     *bodychan.Channel
	Progress *progress.State
	Cancel   *progress.CancelToken

	headerOnce sync.Once
	headerCh   chan Header
	headerErr  atomic.Pointer[error]

	// NativeHandle is an engine-specific opaque slot (a Cronet handler id,
	// a WinHTTP request handle, an NSURLSessionTask pointer boxed as
	// uintptr) set by the adapter and read back during cancellation.
	nativeHandle atomic.Value

	released atomic.Bool
}

// New returns a Context with a freshly allocated body channel (bufSize
// chunks of backpressure headroom), progress state driving cb, and an
// armed cancel token.
func New(bufSize int, cb progress.Callback) *Context {
	return &Context{
		Body:     bodychan.New(bufSize),
		Progress: progress.New(cb),
		Cancel:   progress.NewCancelToken(),
		headerCh: make(chan Header, 1),
	}
}

// PublishHeaders resolves the header-ready future exactly once. Subsequent
// calls are no-ops, matching "header event precedes all body chunks" and
// the at-most-once delivery the header future promises its single waiter.
func (c *Context) PublishHeaders(h Header) {
	c.headerOnce.Do(func() {
		c.headerCh <- h
	})
}

// FailHeaders resolves the header wait with an error instead of a value,
// for the case where the engine fails before headers ever arrive (section
// 7: "a failed request produces an Err from the header await").
func (c *Context) FailHeaders(err error) {
	c.headerOnce.Do(func() {
		c.headerErr.Store(&err)
		close(c.headerCh)
	})
}

// AwaitHeaders blocks (a suspension point, section 5) until PublishHeaders
// or FailHeaders resolves the future, or ctx is cancelled.
func (c *Context) AwaitHeaders(ctx context.Context) (Header, error) {
	select {
	case h, ok := <-c.headerCh:
		if !ok {
			if p := c.headerErr.Load(); p != nil {
				return Header{}, *p
			}
			return Header{}, nil
		}
		return h, nil
	case <-ctx.Done():
		return Header{}, ctx.Err()
	case <-c.Cancel.Done():
		return Header{}, context.Canceled
	}
}

// SetNativeHandle stores the engine-specific native handle (task pointer,
// Cronet handler id, WinHTTP HINTERNET) for later release/cancellation.
// Safe to call from any goroutine; the adapter is the sole writer.
func (c *Context) SetNativeHandle(h any) { c.nativeHandle.Store(h) }

// NativeHandle returns the stored native handle, or nil if none was set.
func (c *Context) NativeHandle() any { return c.nativeHandle.Load() }

// Release marks the Context torn down. Safe to call more than once; only
// the first call has an effect. Per section 3's Context lifecycle, callers
// invoke this after both the header event has fired and the body channel
// is fully drained or errored.
func (c *Context) Release() bool {
	return c.released.CompareAndSwap(false, true)
}

// Released reports whether Release has already run.
func (c *Context) Released() bool { return c.released.Load() }

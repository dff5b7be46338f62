package frakt

import (
	"context"
	"io"

	"github.com/nvm/fraktgo/internal/bodychan"
)

// Response is the uniform value every Engine produces, per section 3. Its
// body is a lazy, finite, non-restartable stream of chunks terminated by
// either success or a terminal *Error.
type Response struct {
	Status          int
	Headers         *Header
	URL             string
	RedirectHeaders []*Header

	body *bodychan.Channel
}

// NewResponse wraps a body channel into a Response. Called by engine
// adapters once the header event has resolved; body may continue
// streaming after construction.
func NewResponse(status int, headers *Header, url string, redirectHeaders []*Header, body *bodychan.Channel) *Response {
	return &Response{Status: status, Headers: headers, URL: url, RedirectHeaders: redirectHeaders, body: body}
}

// Next returns the next body chunk, or (nil, nil, true) at clean end of
// stream, or (nil, err, true) on terminal error, matching bodychan.Channel.
// Once a terminal result is returned, subsequent calls return it again.
func (r *Response) Next(ctx context.Context) ([]byte, error, bool) {
	return r.body.Next(ctx)
}

// ReadAll drains the body stream to completion and returns the
// concatenated bytes, or the terminal error if one occurs. Intended for
// callers and tests that don't need incremental streaming; production
// adapters should prefer Next to honor the "must not buffer the entire
// body" constraint on producers (section 4.2) — ReadAll buffers on the
// consumer side only, which is the caller's choice to make.
func (r *Response) ReadAll(ctx context.Context) ([]byte, error) {
	var out []byte
	for {
		chunk, err, terminal := r.Next(ctx)
		if chunk != nil {
			out = append(out, chunk...)
		}
		if terminal {
			if err != nil {
				return out, err
			}
			return out, nil
		}
	}
}

// BodyReader adapts the body stream to io.Reader for callers that want
// stdlib-shaped consumption (e.g. io.Copy into a file for downloads).
func (r *Response) BodyReader(ctx context.Context) io.Reader {
	return &responseReader{ctx: ctx, resp: r}
}

type responseReader struct {
	ctx     context.Context
	resp    *Response
	pending []byte
	err     error
	done    bool
}

func (rr *responseReader) Read(p []byte) (int, error) {
	for len(rr.pending) == 0 {
		if rr.done {
			if rr.err != nil {
				return 0, rr.err
			}
			return 0, io.EOF
		}
		chunk, err, terminal := rr.resp.Next(rr.ctx)
		if chunk != nil {
			rr.pending = chunk
		}
		if terminal {
			rr.done = true
			rr.err = err
		}
		if len(rr.pending) == 0 && rr.done {
			if rr.err != nil {
				return 0, rr.err
			}
			return 0, io.EOF
		}
	}
	n := copy(p, rr.pending)
	rr.pending = rr.pending[n:]
	return n, nil
}

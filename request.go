package frakt

import (
	"net/url"
	"time"
)

// ProgressCallback is invoked on every progress increment with the total
// bytes transferred so far and, once known, the total expected byte count.
// It must be thread-safe and must not block, per section 5 ("never perform
// user code beyond the progress callback, which must be thread-safe and
// non-blocking").
type ProgressCallback func(transferred uint64, total *uint64)

// Request is the uniform value every Engine consumes, per section 3.
type Request struct {
	Method           Method
	URL              *url.URL
	Headers          *Header
	Body             Body
	ProgressCallback ProgressCallback
	Timeout          time.Duration // zero means the Session's DefaultTimeout applies
}

// NewRequest validates method and rawURL against the rules in sections 3
// and 6 and returns a Request with an empty Header set and body.
//
// NewRequest accepts only http/https URLs (the form Engine.Execute takes);
// NewWebSocketRequest also accepts ws/wss.
func NewRequest(method, rawURL string) (*Request, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	u, err := validateURL(rawURL, true)
	if err != nil {
		return nil, err
	}
	return &Request{Method: m, URL: u, Headers: NewHeader(), Body: EmptyBody()}, nil
}

// NewWebSocketRequest validates rawURL as an absolute ws, wss, http or
// https URL.
func NewWebSocketRequest(rawURL string) (*url.URL, error) {
	return validateURL(rawURL, false)
}

func validateURL(raw string, httpOnly bool) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil, wrapError(ErrInvalidURL, "invalid or non-absolute URL: "+raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		return u, nil
	case "ws", "wss":
		if httpOnly {
			return nil, newError(ErrInvalidURL, "ws/wss scheme is only valid for WebSocket operations: "+raw)
		}
		return u, nil
	default:
		return nil, newError(ErrInvalidURL, "unsupported URL scheme: "+u.Scheme)
	}
}

// EffectiveContentType returns the Content-Type that should be sent on the
// wire: an explicit header always wins over the body's inferred type, per
// section 3's "explicit setting always wins".
func (r *Request) EffectiveContentType(inferred string) string {
	if ct := r.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return inferred
}

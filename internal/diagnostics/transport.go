package diagnostics

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Transport wraps an http.RoundTripper and logs every request/response
// pair through a Logger, the same body-capped capture the engine adapters
// need but as a stdlib-shaped http.RoundTripper so it drops into the
// portable engine's *http.Client.Transport unchanged. This is optional
// instrumentation, not part of the request/response pipeline itself.
type Transport struct {
	Next   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps next (http.DefaultTransport if nil) with diagnostic
// logging through logger.
func NewTransport(next http.RoundTripper, logger *Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{Next: next, Logger: logger}
}

// RoundTrip implements http.RoundTripper, logging the outbound request and
// inbound response (or error) around the wrapped transport's call.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := uuid.NewString()
	start := time.Now()

	reqBody, err := peekBody(req.Body, t.Logger.MaxBodyLen())
	if err == nil {
		req.Body = reqBody.reader
	}

	_ = t.Logger.Log(Entry{
		RequestID: requestID,
		Direction: "request",
		Method:    req.Method,
		Path:      req.URL.String(),
		Headers:   flattenHeader(req.Header),
		Body:      reqBody.captured,
		BodySize:  reqBody.size,
	})

	resp, rtErr := t.Next.RoundTrip(req)
	latency := time.Since(start).Milliseconds()

	if rtErr != nil {
		_ = t.Logger.Log(Entry{
			RequestID: requestID,
			Direction: "response",
			Error:     rtErr.Error(),
			LatencyMs: latency,
		})
		return nil, rtErr
	}

	respBody, err := peekBody(resp.Body, t.Logger.MaxBodyLen())
	if err == nil {
		resp.Body = respBody.reader
	}

	_ = t.Logger.Log(Entry{
		RequestID:  requestID,
		Direction:  "response",
		StatusCode: resp.StatusCode,
		Headers:    flattenHeader(resp.Header),
		Body:       respBody.captured,
		BodySize:   respBody.size,
		LatencyMs:  latency,
	})

	return resp, nil
}

type peekedBody struct {
	reader   io.ReadCloser
	captured string
	size     int
}

// peekBody reads up to maxLen+1 bytes to capture a diagnostic sample
// without consuming the stream for the real caller: it reconstructs a
// ReadCloser that replays the captured prefix followed by whatever
// remains unread on the original body.
func peekBody(body io.ReadCloser, maxLen int) (peekedBody, error) {
	if body == nil {
		return peekedBody{reader: http.NoBody}, nil
	}

	limited := io.LimitReader(body, int64(maxLen)+1)
	captured, err := io.ReadAll(limited)
	if err != nil {
		return peekedBody{}, err
	}

	rest := io.MultiReader(bytes.NewReader(captured), body)
	return peekedBody{
		reader:   struct {
			io.Reader
			io.Closer
		}{rest, body},
		captured: string(captured),
		size:     len(captured),
	}, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

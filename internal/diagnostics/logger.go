// Package diagnostics provides optional HTTP request/response logging for
// the portable engine adapter. It is not part of the Backend Abstraction
// Core's request path; callers wire internal/diagnostics.Transport as an
// http.RoundTripper wrapper when they want a record of wire traffic for
// debugging (see transport.go).
//
// The logger supports:
//   - Request and response capture with headers and bodies
//   - Configurable body size limits to prevent memory issues
//   - Callback-based notifications for real-time log viewing
//   - Thread-safe operation for concurrent requests
//
// Bodies are truncated if they exceed the maximum size passed to NewLogger
// (which applies no default of its own; the portable adapter passes 1 MiB
// when Session.DiagnosticsMaxBodyLen is zero) and marked as truncated in
// the log entry.
package diagnostics

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// logBufferPool reuses byte buffers for JSON encoding, reducing
// allocations when serializing log entries.
var logBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// Entry is a single HTTP request/response diagnostic log entry.
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Headers    map[string]string `json:"headers,omitempty"`
	Component  string            `json:"component"`
	RequestID  string            `json:"request_id"`
	Direction  string            `json:"direction"` // "request" or "response"
	Method     string            `json:"method,omitempty"`
	Path       string            `json:"path,omitempty"`
	Body       string            `json:"body,omitempty"`
	Error      string            `json:"error,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	BodySize   int               `json:"body_size"`
	LatencyMs  int64             `json:"latency_ms,omitempty"`
}

// LogCallback receives every logged Entry.
type LogCallback func(entry Entry)

// Logger writes diagnostic log entries to an output stream and/or
// registered callbacks.
type Logger struct {
	output     io.Writer
	file       *os.File
	component  string
	callbacks  []LogCallback
	maxBodyLen int
	mu         sync.Mutex
}

// NewLogger creates a diagnostics Logger tagging every entry with
// component (e.g. "portable-engine"). If logFile is empty, entries only
// go to registered callbacks, not to any file.
func NewLogger(component, logFile string, maxBodyLen int) (*Logger, error) {
	l := &Logger{
		component:  component,
		maxBodyLen: maxBodyLen,
	}

	if logFile == "" {
		l.output = io.Discard
	} else {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, err
		}
		l.file = f
		l.output = f
	}

	return l, nil
}

// AddCallback registers a callback to receive log entries.
func (l *Logger) AddCallback(cb LogCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// ClearCallbacks removes all registered callbacks.
func (l *Logger) ClearCallbacks() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = nil
}

var stringBuilderPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// truncateBody truncates body to maxLen, appending a truncation marker,
// using a pooled buffer to avoid per-call allocation.
func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}

	buf := stringBuilderPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer stringBuilderPool.Put(buf)

	buf.WriteString(body[:maxLen])
	buf.WriteString("...(truncated)")
	return buf.String()
}

// Log writes entry as JSON using a pooled buffer, stamping Component and
// Timestamp, and notifies every registered callback.
func (l *Logger) Log(entry Entry) error {
	entry.Component = l.component
	entry.Timestamp = time.Now()

	if len(entry.Body) > l.maxBodyLen {
		entry.Body = truncateBody(entry.Body, l.maxBodyLen)
	}

	buf := logBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer logBufferPool.Put(buf)

	encoder := json.NewEncoder(buf)
	if err := encoder.Encode(entry); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, cb := range l.callbacks {
		cb(entry)
	}

	_, err := l.output.Write(buf.Bytes())
	return err
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// MaxBodyLen returns the maximum logged body length.
func (l *Logger) MaxBodyLen() int {
	return l.maxBodyLen
}

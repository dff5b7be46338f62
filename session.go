package frakt

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
)

// RedirectPolicy controls whether an Engine follows redirect responses
// transparently, per section 6 ("followed by default; configurable off").
type RedirectPolicy int

const (
	FollowRedirects RedirectPolicy = iota
	DontFollowRedirects
)

// Session carries per-session defaults an Engine consults on every
// request: timeout, redirect/cookie policy, proxy, buffering limits, and
// the directory resumable downloads persist their state files under
// (section 3 "Session", section 6 "Persisted layout"). Unlike the
// teacher's file-backed Config, a Session is always constructed
// programmatically — this library has no on-disk config format of its
// own — but it is validated fail-fast the same way.
type Session struct {
	DefaultTimeout        time.Duration
	Redirects             RedirectPolicy
	CookiePolicy          CookieAcceptPolicy
	MaxResponseBufferSize int64
	StateDir              string
	Proxy                 *url.URL
	Logger                logr.Logger

	// DiagnosticsEnabled turns on wire-level request/response logging in
	// the portable engine (internal/diagnostics.Transport). Off by default.
	DiagnosticsEnabled bool
	// DiagnosticsLogFile is the path diagnostic entries are appended to;
	// empty means entries only reach registered callbacks, not a file.
	DiagnosticsLogFile string
	// DiagnosticsMaxBodyLen caps how many bytes of each request/response
	// body a diagnostic entry captures before truncating. Zero defaults to
	// 1 MiB when DiagnosticsEnabled is true.
	DiagnosticsMaxBodyLen int
}

// DefaultSession returns a Session with conservative defaults: a 30s
// request timeout, redirects followed, cookies always accepted, an 8 MiB
// in-memory response buffer cap (Foundation adapter's didReceiveData
// cap, section 4.3), and a state dir under the OS temp directory
// (section 6, "<tmp>/<product>/").
func DefaultSession() *Session {
	return &Session{
		DefaultTimeout:        30 * time.Second,
		Redirects:             FollowRedirects,
		CookiePolicy:          CookieAcceptAlways,
		MaxResponseBufferSize: 8 << 20,
		StateDir:              filepath.Join(os.TempDir(), "fraktgo"),
		Logger:                logr.Discard(),
	}
}

// Validate checks every field for internal consistency and returns every
// violation found (fail-fast constructors return the first error via
// NewSession; Validate itself is exhaustive for callers that want the
// full list, matching the Validator.ValidateConfig style the ambient
// config package this is modeled on uses).
func (s *Session) Validate() []error {
	var errs []error
	if s.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("session: default timeout must not be negative, got %s", s.DefaultTimeout))
	}
	if s.MaxResponseBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("session: max response buffer size must be positive, got %d", s.MaxResponseBufferSize))
	}
	if s.StateDir == "" {
		errs = append(errs, fmt.Errorf("session: state dir must not be empty"))
	}
	switch s.Redirects {
	case FollowRedirects, DontFollowRedirects:
	default:
		errs = append(errs, fmt.Errorf("session: unknown redirect policy %d", s.Redirects))
	}
	switch s.CookiePolicy {
	case CookieAcceptAlways, CookieAcceptNever, CookieAcceptMainDocumentOnly:
	default:
		errs = append(errs, fmt.Errorf("session: unknown cookie policy %d", s.CookiePolicy))
	}
	if s.Proxy != nil && s.Proxy.Scheme == "" {
		errs = append(errs, fmt.Errorf("session: proxy URL must be absolute: %s", s.Proxy))
	}
	if s.DiagnosticsMaxBodyLen < 0 {
		errs = append(errs, fmt.Errorf("session: diagnostics max body length must not be negative, got %d", s.DiagnosticsMaxBodyLen))
	}
	return errs
}

// NewSession applies mutate to a copy of DefaultSession, validates the
// result, and returns the first validation error encountered, if any. Fields left zero-valued
// by the caller's mutations of the returned Session keep the default.
func NewSession(mutate func(*Session)) (*Session, error) {
	s := DefaultSession()
	if mutate != nil {
		mutate(s)
	}
	if errs := s.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid session: %w", errs[0])
	}
	return s, nil
}

// Log returns s.Logger, or a discard logger if s is nil or Logger is the
// zero value, so engine adapters can call Session.Log() unconditionally.
func (s *Session) Log() logr.Logger {
	if s == nil || s.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return s.Logger
}

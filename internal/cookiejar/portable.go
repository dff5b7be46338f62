// Package cookiejar implements the cookie store of SPEC_FULL.md section
// 4.8: a portable RFC 6265 in-memory store shared by every engine except
// Apple's (which defers to the OS-native cookie store instead), plus a
// thin acceptance-policy layer the store itself doesn't provide.
package cookiejar

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	frakt "github.com/nvm/fraktgo"
)

// entry is one stored cookie, keyed by (domain, path, name) the way
// RFC 6265 section 5.3 deduplicates.
type entry struct {
	expires    *time.Time
	name       string
	value      string
	domain     string
	path       string
	secure     bool
	httpOnly   bool
	insertedAt int64
}

func (e *entry) key() string {
	return strings.ToLower(e.domain) + "\x00" + e.path + "\x00" + e.name
}

// Portable is the in-memory RFC 6265 cookie store. Unlike the "known
// limitation" noted in SPEC_FULL.md section 9, AllCookies here truly
// enumerates every stored cookie: entries live in a plain map, not behind
// an opaque accumulator that only supports per-request lookups.
type Portable struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     int64
	policy  frakt.CookieAcceptPolicy
}

var _ frakt.CookieJar = (*Portable)(nil)

// NewPortable creates an empty store with the given acceptance policy.
func NewPortable(policy frakt.CookieAcceptPolicy) *Portable {
	return &Portable{
		entries: make(map[string]*entry),
		policy:  policy,
	}
}

// SetPolicy changes the acceptance policy applied by future calls to
// ProcessResponseHeaders.
func (p *Portable) SetPolicy(policy frakt.CookieAcceptPolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// ProcessResponseHeaders parses every Set-Cookie header present in
// headers, in document order, storing (or rejecting, per policy) each.
func (p *Portable) ProcessResponseHeaders(rawURL string, headers *frakt.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.policy == frakt.CookieAcceptNever {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	for _, raw := range headers.Values("set-cookie") {
		sc, err := http.ParseSetCookie(raw)
		if err != nil {
			continue
		}

		domain := sc.Domain
		if domain == "" {
			domain = u.Hostname()
		}
		if p.policy == frakt.CookieAcceptMainDocumentOnly && !strings.EqualFold(strings.TrimPrefix(domain, "."), u.Hostname()) {
			continue
		}

		path := sc.Path
		if path == "" {
			path = "/"
		}

		e := &entry{
			name:     sc.Name,
			value:    sc.Value,
			domain:   domain,
			path:     path,
			secure:   sc.Secure,
			httpOnly: sc.HttpOnly,
		}
		if !sc.Expires.IsZero() {
			exp := sc.Expires
			e.expires = &exp
		} else if sc.MaxAge != 0 {
			exp := time.Now().Add(time.Duration(sc.MaxAge) * time.Second)
			e.expires = &exp
		}

		p.store(e)
	}

	return nil
}

// store inserts e, preserving the original insertion sequence number of
// any cookie it replaces so CookiesForURL's ordering stays stable across
// repeated Set-Cookie updates for the same cookie.
func (p *Portable) store(e *entry) {
	k := e.key()
	if existing, ok := p.entries[k]; ok {
		e.insertedAt = existing.insertedAt
	} else {
		p.seq++
		e.insertedAt = p.seq
	}

	if e.expires != nil && e.expires.Before(time.Now()) {
		delete(p.entries, k)
		return
	}
	p.entries[k] = e
}

// CookiesForURL returns the Cookie header value for rawURL, joining
// name=value pairs in insertion order.
func (p *Portable) CookiesForURL(rawURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	matches := p.matchingLocked(u)
	parts := make([]string, len(matches))
	for i, e := range matches {
		parts[i] = e.name + "=" + e.value
	}
	return strings.Join(parts, "; "), nil
}

func (p *Portable) matchingLocked(u *url.URL) []*entry {
	now := time.Now()
	secure := u.Scheme == "https"
	host := u.Hostname()
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}

	var matches []*entry
	for _, e := range p.entries {
		if e.expires != nil && e.expires.Before(now) {
			continue
		}
		if e.secure && !secure {
			continue
		}
		if !domainMatches(host, e.domain) {
			continue
		}
		if !pathMatches(reqPath, e.path) {
			continue
		}
		matches = append(matches, e)
	}

	sortBySequence(matches)
	return matches
}

func domainMatches(host, cookieDomain string) bool {
	host = strings.ToLower(host)
	cookieDomain = strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	return host == cookieDomain || strings.HasSuffix(host, "."+cookieDomain)
}

func pathMatches(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if strings.HasPrefix(reqPath, cookiePath) {
		if strings.HasSuffix(cookiePath, "/") {
			return true
		}
		return strings.HasPrefix(reqPath[len(cookiePath):], "/")
	}
	return false
}

// sortBySequence orders matches by insertion sequence, ascending, in place.
func sortBySequence(matches []*entry) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1].insertedAt > matches[j].insertedAt; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
}

// AddCookie inserts or replaces a cookie directly, bypassing the
// acceptance policy (callers asked for this cookie explicitly).
func (p *Portable) AddCookie(c frakt.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := c.Path
	if path == "" {
		path = "/"
	}

	p.store(&entry{
		name:     c.Name,
		value:    c.Value,
		domain:   c.Domain,
		path:     path,
		secure:   c.Secure,
		httpOnly: c.HTTPOnly,
		expires:  c.Expires,
	})
	return nil
}

// RemoveCookie removes the cookie matching (domain, path, name) by
// deleting its entry outright.
func (p *Portable) RemoveCookie(domain, path, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path == "" {
		path = "/"
	}
	e := &entry{domain: domain, path: path, name: name}
	delete(p.entries, e.key())
	return nil
}

// Clear removes every stored cookie.
func (p *Portable) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]*entry)
	return nil
}

// AllCookies returns every stored, non-expired cookie. This always
// enumerates fully; see the package doc comment.
func (p *Portable) AllCookies() ([]frakt.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	out := make([]frakt.Cookie, 0, len(p.entries))
	for _, e := range p.entries {
		if e.expires != nil && e.expires.Before(now) {
			continue
		}
		out = append(out, frakt.Cookie{
			Name:     e.name,
			Value:    e.value,
			Domain:   e.domain,
			Path:     e.path,
			Expires:  e.expires,
			Secure:   e.secure,
			HTTPOnly: e.httpOnly,
		})
	}
	return out, nil
}

//go:build !darwin

package cookiejar

import (
	"errors"

	frakt "github.com/nvm/fraktgo"
)

// errAppleUnavailable is returned by every Apple method on non-darwin
// platforms; engine selection (SPEC_FULL.md section 4) never constructs
// this type outside a darwin build, so callers should never observe it
// in practice.
var errAppleUnavailable = errors.New("cookiejar: native Apple cookie store is only available on darwin")

// Apple is a stub on non-darwin platforms; the Foundation engine adapter
// that would use it is itself darwin-only.
type Apple struct{}

var _ frakt.CookieJar = (*Apple)(nil)

// NewApple returns a stub Apple jar; every method returns
// errAppleUnavailable on this platform.
func NewApple() *Apple { return &Apple{} }

func (a *Apple) ProcessResponseHeaders(rawURL string, headers *frakt.Header) error {
	return errAppleUnavailable
}

func (a *Apple) CookiesForURL(rawURL string) (string, error) {
	return "", errAppleUnavailable
}

func (a *Apple) AddCookie(c frakt.Cookie) error {
	return errAppleUnavailable
}

func (a *Apple) RemoveCookie(domain, path, name string) error {
	return errAppleUnavailable
}

func (a *Apple) Clear() error {
	return errAppleUnavailable
}

func (a *Apple) AllCookies() ([]frakt.Cookie, error) {
	return nil, errAppleUnavailable
}

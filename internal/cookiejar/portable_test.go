package cookiejar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	frakt "github.com/nvm/fraktgo"
)

func headerWithSetCookie(values ...string) *frakt.Header {
	h := frakt.NewHeader()
	for _, v := range values {
		h.Add("Set-Cookie", v)
	}
	return h
}

func TestPortable_ProcessResponseHeadersAndCookiesForURL(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)

	err := jar.ProcessResponseHeaders("https://example.com/path", headerWithSetCookie(
		"a=1; Path=/",
		"b=2; Path=/",
	))
	require.NoError(t, err)

	cookies, err := jar.CookiesForURL("https://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "a=1; b=2", cookies)
}

func TestPortable_CookieAcceptNeverSuppressesStorage(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptNever)

	err := jar.ProcessResponseHeaders("https://example.com", headerWithSetCookie("a=1"))
	require.NoError(t, err)

	cookies, err := jar.CookiesForURL("https://example.com")
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestPortable_MainDocumentOnlyRejectsForeignDomain(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptMainDocumentOnly)

	err := jar.ProcessResponseHeaders("https://example.com", headerWithSetCookie(
		"same=1",
		"foreign=2; Domain=other.com",
	))
	require.NoError(t, err)

	cookies, err := jar.CookiesForURL("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "same=1", cookies)
}

func TestPortable_ExpiredCookieIsNotReturned(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)

	err := jar.AddCookie(frakt.Cookie{
		Name:   "stale",
		Value:  "1",
		Domain: "example.com",
		Path:   "/",
		Expires: func() *time.Time {
			t := time.Now().Add(-time.Hour)
			return &t
		}(),
	})
	require.NoError(t, err)

	cookies, err := jar.CookiesForURL("https://example.com")
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestPortable_RemoveCookie(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/"}))

	require.NoError(t, jar.RemoveCookie("example.com", "/", "a"))

	cookies, err := jar.CookiesForURL("https://example.com")
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestPortable_Clear(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/"}))
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "b", Value: "2", Domain: "example.com", Path: "/"}))

	require.NoError(t, jar.Clear())

	all, err := jar.AllCookies()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPortable_AllCookiesTrulyEnumerates(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/"}))
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "b", Value: "2", Domain: "other.com", Path: "/sub"}))

	all, err := jar.AllCookies()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPortable_DomainMatchingIncludesSubdomains(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/"}))

	cookies, err := jar.CookiesForURL("https://sub.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "a=1", cookies)
}

func TestPortable_SecureCookieExcludedFromPlainHTTP(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)
	require.NoError(t, jar.AddCookie(frakt.Cookie{Name: "s", Value: "1", Domain: "example.com", Path: "/", Secure: true}))

	cookies, err := jar.CookiesForURL("http://example.com/")
	require.NoError(t, err)
	assert.Empty(t, cookies)

	cookies, err = jar.CookiesForURL("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "s=1", cookies)
}

func TestPortable_RedirectCookieVisibleOnSubsequentHop(t *testing.T) {
	jar := NewPortable(frakt.CookieAcceptAlways)

	require.NoError(t, jar.ProcessResponseHeaders("https://example.com/login", headerWithSetCookie("sess=abc; Path=/")))

	cookies, err := jar.CookiesForURL("https://example.com/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "sess=abc", cookies)
}

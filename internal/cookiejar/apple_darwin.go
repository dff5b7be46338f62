//go:build darwin

package cookiejar

/*
#cgo LDFLAGS: -framework Foundation
#import <Foundation/Foundation.h>
#include <stdlib.h>

static NSHTTPCookieStorage *fraktgo_storage(void) {
	return [NSHTTPCookieStorage sharedHTTPCookieStorage];
}

static void fraktgo_cookie_set(const char *name, const char *value, const char *domain, const char *path, int secure) {
	@autoreleasepool {
		NSMutableDictionary *props = [NSMutableDictionary dictionary];
		props[NSHTTPCookieName] = [NSString stringWithUTF8String:name];
		props[NSHTTPCookieValue] = [NSString stringWithUTF8String:value];
		props[NSHTTPCookieDomain] = [NSString stringWithUTF8String:domain];
		props[NSHTTPCookiePath] = [NSString stringWithUTF8String:path];
		if (secure) { props[NSHTTPCookieSecure] = @"TRUE"; }
		NSHTTPCookie *cookie = [NSHTTPCookie cookieWithProperties:props];
		if (cookie != nil) {
			[fraktgo_storage() setCookie:cookie];
		}
	}
}

// fraktgo_cookies_for_url returns a "name=value; name2=value2" string for
// every cookie NSHTTPCookieStorage considers applicable to urlStr. The
// caller owns the returned buffer and must free() it.
static char *fraktgo_cookies_for_url(const char *urlStr) {
	@autoreleasepool {
		NSURL *url = [NSURL URLWithString:[NSString stringWithUTF8String:urlStr]];
		NSArray<NSHTTPCookie *> *cookies = [fraktgo_storage() cookiesForURL:url];
		NSMutableArray<NSString *> *pairs = [NSMutableArray arrayWithCapacity:cookies.count];
		for (NSHTTPCookie *cookie in cookies) {
			[pairs addObject:[NSString stringWithFormat:@"%@=%@", cookie.name, cookie.value]];
		}
		NSString *joined = [pairs componentsJoinedByString:@"; "];
		return strdup([joined UTF8String]);
	}
}

// fraktgo_cookie_remove deletes the cookie matching domain/path/name, if any.
static void fraktgo_cookie_remove(const char *domain, const char *path, const char *name) {
	@autoreleasepool {
		NSString *nsDomain = [NSString stringWithUTF8String:domain];
		NSString *nsPath = [NSString stringWithUTF8String:path];
		NSString *nsName = [NSString stringWithUTF8String:name];
		NSHTTPCookieStorage *storage = fraktgo_storage();
		for (NSHTTPCookie *cookie in [storage.cookies copy]) {
			if ([cookie.name isEqualToString:nsName] &&
				[cookie.path isEqualToString:nsPath] &&
				[cookie.domain hasSuffix:nsDomain]) {
				[storage deleteCookie:cookie];
			}
		}
	}
}

static void fraktgo_cookie_clear(void) {
	@autoreleasepool {
		NSHTTPCookieStorage *storage = fraktgo_storage();
		for (NSHTTPCookie *cookie in [storage.cookies copy]) {
			[storage deleteCookie:cookie];
		}
	}
}

// fraktgo_cookies_all returns every stored cookie serialized as
// "domain\x01path\x01name\x01value\x02" records; the caller must free().
static char *fraktgo_cookies_all(void) {
	@autoreleasepool {
		NSHTTPCookieStorage *storage = fraktgo_storage();
		NSMutableString *out = [NSMutableString string];
		for (NSHTTPCookie *cookie in storage.cookies) {
			[out appendFormat:@"%@\x01%@\x01%@\x01%@\x02", cookie.domain, cookie.path, cookie.name, cookie.value];
		}
		return strdup([out UTF8String]);
	}
}
*/
import "C"

import (
	"net/url"
	"strings"
	"unsafe"

	frakt "github.com/nvm/fraktgo"
)

// Apple wraps the OS-shared NSHTTPCookieStorage, reached through the
// small Objective-C shim above, per SPEC_FULL.md section 4.8: cookies
// set here are visible to every process using the same cookie storage,
// not just this module.
type Apple struct{}

var _ frakt.CookieJar = (*Apple)(nil)

// NewApple returns a CookieJar backed by NSHTTPCookieStorage.
func NewApple() *Apple { return &Apple{} }

// ProcessResponseHeaders hands every Set-Cookie header to the shared
// storage. Only each header's name=value pair is kept: the cookie is
// stored for the response host with path "/", and the header's
// attributes (Domain, Path, Expires, Max-Age, Secure, HttpOnly) are
// ignored.
func (a *Apple) ProcessResponseHeaders(rawURL string, headers *frakt.Header) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	for _, raw := range headers.Values("set-cookie") {
		name, value, ok := splitNameValue(raw)
		if !ok {
			continue
		}
		if err := a.AddCookie(frakt.Cookie{Name: name, Value: value, Domain: u.Hostname(), Path: "/"}); err != nil {
			return err
		}
	}
	return nil
}

func splitNameValue(setCookie string) (name, value string, ok bool) {
	firstAttr := strings.SplitN(setCookie, ";", 2)[0]
	parts := strings.SplitN(firstAttr, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// CookiesForURL asks NSHTTPCookieStorage for cookies applicable to
// rawURL; it applies domain/path/secure matching for us.
func (a *Apple) CookiesForURL(rawURL string) (string, error) {
	cURL := C.CString(rawURL)
	defer C.free(unsafe.Pointer(cURL))

	result := C.fraktgo_cookies_for_url(cURL)
	defer C.free(unsafe.Pointer(result))
	return C.GoString(result), nil
}

// AddCookie inserts a cookie directly into the shared storage.
func (a *Apple) AddCookie(c frakt.Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}

	name, value, domain, cPath := C.CString(c.Name), C.CString(c.Value), C.CString(c.Domain), C.CString(path)
	defer func() {
		C.free(unsafe.Pointer(name))
		C.free(unsafe.Pointer(value))
		C.free(unsafe.Pointer(domain))
		C.free(unsafe.Pointer(cPath))
	}()

	secure := 0
	if c.Secure {
		secure = 1
	}
	C.fraktgo_cookie_set(name, value, domain, cPath, C.int(secure))
	return nil
}

// RemoveCookie deletes the cookie matching (domain, path, name).
func (a *Apple) RemoveCookie(domain, path, name string) error {
	if path == "" {
		path = "/"
	}
	cDomain, cPath, cName := C.CString(domain), C.CString(path), C.CString(name)
	defer func() {
		C.free(unsafe.Pointer(cDomain))
		C.free(unsafe.Pointer(cPath))
		C.free(unsafe.Pointer(cName))
	}()
	C.fraktgo_cookie_remove(cDomain, cPath, cName)
	return nil
}

// Clear deletes every cookie from the shared storage.
func (a *Apple) Clear() error {
	C.fraktgo_cookie_clear()
	return nil
}

// AllCookies enumerates every cookie in the shared storage.
func (a *Apple) AllCookies() ([]frakt.Cookie, error) {
	result := C.fraktgo_cookies_all()
	defer C.free(unsafe.Pointer(result))

	raw := C.GoString(result)
	if raw == "" {
		return nil, nil
	}

	records := strings.Split(raw, "\x02")
	out := make([]frakt.Cookie, 0, len(records))
	for _, rec := range records {
		if rec == "" {
			continue
		}
		fields := strings.Split(rec, "\x01")
		if len(fields) != 4 {
			continue
		}
		out = append(out, frakt.Cookie{
			Domain: fields[0],
			Path:   fields[1],
			Name:   fields[2],
			Value:  fields[3],
		})
	}
	return out, nil
}

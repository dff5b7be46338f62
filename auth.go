package frakt

import "encoding/base64"

// SetBasicAuth sets the Authorization header to the Basic scheme, per
// section 6: "Authorization: Basic <base64(user:pass)>". Grounded on
// original_source/src/auth.rs, which exposes the same three helper shapes
// (Basic, Bearer, Custom) rather than a builder type.
func SetBasicAuth(h *Header, user, pass string) {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	h.Set("Authorization", "Basic "+token)
}

// SetBearerAuth sets the Authorization header to the Bearer scheme.
func SetBearerAuth(h *Header, token string) {
	h.Set("Authorization", "Bearer "+token)
}

// SetCustomAuth sets the Authorization header to an arbitrary
// "<scheme> <credentials>" pair, for auth schemes fraktgo has no dedicated
// helper for.
func SetCustomAuth(h *Header, scheme, credentials string) {
	h.Set("Authorization", scheme+" "+credentials)
}

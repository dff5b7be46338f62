package frakt

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSession_IsValid(t *testing.T) {
	s := DefaultSession()
	assert.Empty(t, s.Validate())
}

func TestNewSession_AppliesMutation(t *testing.T) {
	s, err := NewSession(func(s *Session) {
		s.DefaultTimeout = 5 * time.Second
		s.CookiePolicy = CookieAcceptNever
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.DefaultTimeout)
	assert.Equal(t, CookieAcceptNever, s.CookiePolicy)
}

func TestNewSession_RejectsNegativeTimeout(t *testing.T) {
	_, err := NewSession(func(s *Session) {
		s.DefaultTimeout = -1
	})
	assert.Error(t, err)
}

func TestSession_Validate_CollectsAllErrors(t *testing.T) {
	s := &Session{
		DefaultTimeout:        -1,
		MaxResponseBufferSize: 0,
		StateDir:              "",
		Redirects:             RedirectPolicy(99),
		CookiePolicy:          CookieAcceptPolicy(99),
	}
	errs := s.Validate()
	assert.Len(t, errs, 5)
}

func TestSession_Validate_RejectsRelativeProxy(t *testing.T) {
	s := DefaultSession()
	s.Proxy = &url.URL{Host: "proxy.local"}
	errs := s.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "proxy")
}

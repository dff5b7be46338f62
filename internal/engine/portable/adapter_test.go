package portable

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	frakt "github.com/nvm/fraktgo"
	"github.com/nvm/fraktgo/internal/diagnostics"
)

func newRequest(t *testing.T, method, rawURL string) *frakt.Request {
	t.Helper()
	req, err := frakt.NewRequest(method, rawURL)
	require.NoError(t, err)
	return req
}

func TestAdapter_ExecuteReturnsHeadersAndStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	session := frakt.DefaultSession()
	adapter := New(session)
	defer adapter.Close()

	req := newRequest(t, "GET", srv.URL)
	resp, err := adapter.Execute(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "yes", resp.Headers.Get("X-Test"))

	body, err := resp.ReadAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestAdapter_ExecutePropagatesQueryAndHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	adapter := New(frakt.DefaultSession())
	defer adapter.Close()

	req := newRequest(t, "GET", srv.URL)
	req.Headers.Set("X-Custom", "value-1")

	resp, err := adapter.Execute(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Equal(t, "value-1", gotHeader)
}

func TestAdapter_ExecuteSendsAndStoresCookies(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		assert.Contains(t, r.Header.Get("Cookie"), "session=abc")
	}))
	defer srv.Close()

	adapter := New(frakt.DefaultSession())
	defer adapter.Close()

	_, err := adapter.Execute(t.Context(), newRequest(t, "GET", srv.URL))
	require.NoError(t, err)

	resp, err := adapter.Execute(t.Context(), newRequest(t, "GET", srv.URL))
	require.NoError(t, err)
	_, _ = resp.ReadAll(t.Context())

	assert.Equal(t, 2, calls)
}

func TestAdapter_ExecuteTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	adapter := New(frakt.DefaultSession())
	defer adapter.Close()

	req := newRequest(t, "GET", srv.URL)
	req.Timeout = 10 * time.Millisecond

	_, err := adapter.Execute(t.Context(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, frakt.Timeout)
}

func TestAdapter_ExecuteBackgroundDownloadResumable(t *testing.T) {
	const content = "downloaded payload"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	session := frakt.DefaultSession()
	session.StateDir = dir
	adapter := New(session)
	defer adapter.Close()

	dest := filepath.Join(dir, "file.bin")
	resp, err := adapter.ExecuteBackgroundDownload(t.Context(), &frakt.DownloadRequest{
		Kind:            frakt.DownloadResumable,
		URL:             srv.URL,
		DestinationPath: dest,
		SessionID:       "dl-1",
	})
	require.NoError(t, err)
	assert.Equal(t, frakt.DownloadCompleted, resp.Status)
	assert.Equal(t, int64(len(content)), resp.BytesDownloaded)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestAdapter_ExecuteInvokesProgressCallbackMonotonicallyToTotal(t *testing.T) {
	const body = "progress callback payload, forty-three bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	adapter := New(frakt.DefaultSession())
	defer adapter.Close()

	var mu sync.Mutex
	var last uint64
	var lastTotal *uint64
	req := newRequest(t, "GET", srv.URL)
	req.ProgressCallback = func(transferred uint64, total *uint64) {
		mu.Lock()
		defer mu.Unlock()
		require.GreaterOrEqual(t, transferred, last)
		last = transferred
		lastTotal = total
	}

	resp, err := adapter.Execute(t.Context(), req)
	require.NoError(t, err)
	_, err = resp.ReadAll(t.Context())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(len(body)), last)
	require.NotNil(t, lastTotal)
	assert.Equal(t, uint64(len(body)), *lastTotal)
}

func TestAdapter_DiagnosticsTransportLogsRequestsWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	session := frakt.DefaultSession()
	session.DiagnosticsEnabled = true
	adapter := New(session)
	defer adapter.Close()

	require.NotNil(t, adapter.diagLogger)

	var entries []diagnostics.Entry
	adapter.diagLogger.AddCallback(func(e diagnostics.Entry) { entries = append(entries, e) })

	_, err := adapter.Execute(t.Context(), newRequest(t, "GET", srv.URL))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "request", entries[0].Direction)
	assert.Equal(t, "response", entries[1].Direction)
	assert.Equal(t, http.StatusOK, entries[1].StatusCode)
}

func TestAdapter_WebSocketConnectRejectsInvalidURL(t *testing.T) {
	adapter := New(frakt.DefaultSession())
	defer adapter.Close()

	_, err := adapter.WebSocketConnect(context.Background(), "://bad", frakt.WebSocketOptions{})
	require.Error(t, err)
}

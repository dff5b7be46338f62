package download

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DownloadsFullFileAndWritesCompletedState(t *testing.T) {
	const body = "hello resumable world"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "21")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	var lastTransferred uint64
	result, err := Run(t.Context(), ResumableOptions{
		Client:      srv.Client(),
		URL:         srv.URL,
		Destination: dest,
		StateDir:    dir,
		SessionID:   "sess-1",
		Progress: func(transferred uint64, total *uint64) {
			lastTransferred = transferred
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), result.Bytes)
	assert.Equal(t, uint64(len(body)), lastTransferred)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	state, err := ReadState(StatePath(dir, "sess-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, int64(len(body)), state.BytesDownloaded)
}

func TestRun_ResumesFromExistingPartialFile(t *testing.T) {
	const full = "0123456789ABCDEF"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write([]byte(full))
			return
		}
		var start int
		_, _ = fmt.Sscanf(rng, "bytes=%d-", &start)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(full[start:]))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "partial.bin")
	require.NoError(t, os.WriteFile(dest, []byte(full[:8]), 0644))

	result, err := Run(t.Context(), ResumableOptions{
		Client:      srv.Client(),
		URL:         srv.URL,
		Destination: dest,
		StateDir:    dir,
		SessionID:   "sess-2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(full)), result.Bytes)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, full, string(data))
}

func TestRun_RangeNotSatisfiableTreatsAsComplete(t *testing.T) {
	const full = "already done"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "done.bin")
	require.NoError(t, os.WriteFile(dest, []byte(full), 0644))

	result, err := Run(t.Context(), ResumableOptions{
		Client:      srv.Client(),
		URL:         srv.URL,
		Destination: dest,
		StateDir:    dir,
		SessionID:   "sess-3",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(full)), result.Bytes)
}

func TestRun_HonorsRateLimitWithoutCorruptingOutput(t *testing.T) {
	const body = "rate limited payload, still must arrive intact"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "throttled.bin")

	result, err := Run(t.Context(), ResumableOptions{
		Client:      srv.Client(),
		URL:         srv.URL,
		Destination: dest,
		StateDir:    dir,
		SessionID:   "sess-4",
		RateLimit:   1 << 20, // 1 MiB/s, well above this tiny payload
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), result.Bytes)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

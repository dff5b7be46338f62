package diagnostics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_LogsRequestAndResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "ping", string(body))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	logger, err := NewLogger("portable-engine", "", 1<<20)
	require.NoError(t, err)
	defer logger.Close()

	var entries []Entry
	logger.AddCallback(func(e Entry) { entries = append(entries, e) })

	transport := NewTransport(nil, logger)
	client := &http.Client{Transport: transport}

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("ping"))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(respBody))
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	require.Len(t, entries, 2)
	assert.Equal(t, "request", entries[0].Direction)
	assert.Equal(t, "ping", entries[0].Body)
	assert.Equal(t, "response", entries[1].Direction)
	assert.Equal(t, "pong", entries[1].Body)
	assert.Equal(t, http.StatusTeapot, entries[1].StatusCode)
	assert.NotEmpty(t, entries[0].RequestID)
	assert.Equal(t, entries[0].RequestID, entries[1].RequestID)
}

func TestTransport_PropagatesRoundTripError(t *testing.T) {
	logger, err := NewLogger("portable-engine", "", 1<<20)
	require.NoError(t, err)
	defer logger.Close()

	var entries []Entry
	logger.AddCallback(func(e Entry) { entries = append(entries, e) })

	transport := NewTransport(http.DefaultTransport, logger)
	client := &http.Client{Transport: transport}

	_, err = client.Get("http://127.0.0.1:0")
	require.Error(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "response", entries[1].Direction)
	assert.NotEmpty(t, entries[1].Error)
}

func TestTransport_NilBodyRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger, err := NewLogger("portable-engine", "", 1<<20)
	require.NoError(t, err)
	defer logger.Close()

	transport := NewTransport(nil, logger)
	client := &http.Client{Transport: transport}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

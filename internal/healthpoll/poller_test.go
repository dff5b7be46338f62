package healthpoll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_ReportsProgressUntilTerminal(t *testing.T) {
	p := New(10 * time.Millisecond)
	defer p.Stop()

	var calls int32
	var lastBytes int64
	done := make(chan Result, 1)

	p.Register("sess-1", func(ctx context.Context) (Result, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return Result{Status: StatusDownloading, BytesSoFar: int64(n) * 100, TotalSize: 1000}, nil
		}
		return Result{Status: StatusSuccessful, BytesSoFar: 1000, TotalSize: 1000}, nil
	}, func(bytesSoFar, total int64) {
		atomic.StoreInt64(&lastBytes, bytesSoFar)
	}, func(sessionID string, result Result) {
		done <- result
	})

	select {
	case result := <-done:
		assert.Equal(t, StatusSuccessful, result.Status)
		assert.Equal(t, int64(1000), result.BytesSoFar)
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestPoller_FailedPollBecomesFailedResult(t *testing.T) {
	p := New(10 * time.Millisecond)
	defer p.Stop()

	done := make(chan Result, 1)
	p.Register("sess-err", func(ctx context.Context) (Result, error) {
		return Result{}, assert.AnError
	}, nil, func(sessionID string, result Result) {
		done <- result
	})

	select {
	case result := <-done:
		assert.Equal(t, StatusFailed, result.Status)
		assert.ErrorIs(t, result.Err, assert.AnError)
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestPoller_UnregisterStopsPolling(t *testing.T) {
	p := New(5 * time.Millisecond)
	defer p.Stop()

	var calls int32
	p.Register("sess-stop", func(ctx context.Context) (Result, error) {
		atomic.AddInt32(&calls, 1)
		return Result{Status: StatusDownloading}, nil
	}, nil, nil)

	time.Sleep(30 * time.Millisecond)
	p.Unregister("sess-stop")
	seenAtUnregister := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, seenAtUnregister, atomic.LoadInt32(&calls))
}

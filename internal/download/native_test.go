package download

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvm/fraktgo/internal/healthpoll"
)

type fakeJob struct {
	results []healthpoll.Result
	idx     int
}

func (f *fakeJob) Poll(ctx context.Context) (healthpoll.Result, error) {
	r := f.results[f.idx]
	if f.idx < len(f.results)-1 {
		f.idx++
	}
	return r, nil
}

func TestRunNative_ReturnsResultOnSuccess(t *testing.T) {
	poller := healthpoll.New(5 * time.Millisecond)
	defer poller.Stop()

	job := &fakeJob{results: []healthpoll.Result{
		{Status: healthpoll.StatusDownloading, BytesSoFar: 10, TotalSize: 100},
		{Status: healthpoll.StatusDownloading, BytesSoFar: 50, TotalSize: 100},
		{Status: healthpoll.StatusSuccessful, BytesSoFar: 100, TotalSize: 100},
	}}

	var lastTransferred uint64
	result, err := RunNative(context.Background(), poller, "native-1", "/tmp/out", job, func(transferred uint64, total *uint64) {
		lastTransferred = transferred
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", result.Path)
	assert.Equal(t, int64(100), result.Bytes)
	assert.Equal(t, uint64(100), lastTransferred)
}

func TestRunNative_FailedJobReturnsError(t *testing.T) {
	poller := healthpoll.New(5 * time.Millisecond)
	defer poller.Stop()

	job := &fakeJob{results: []healthpoll.Result{
		{Status: healthpoll.StatusFailed, BytesSoFar: 30},
	}}

	_, err := RunNative(context.Background(), poller, "native-2", "/tmp/out", job, nil)
	assert.Error(t, err)
}

func TestRunNative_CancelledJobReturnsContextCancelled(t *testing.T) {
	poller := healthpoll.New(5 * time.Millisecond)
	defer poller.Stop()

	job := &fakeJob{results: []healthpoll.Result{
		{Status: healthpoll.StatusCancelled, BytesSoFar: 5},
	}}

	_, err := RunNative(context.Background(), poller, "native-3", "/tmp/out", job, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunResumable_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := RunResumable(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunResumable_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	boom := errors.New("connection reset")
	err := RunResumable(context.Background(), func() error {
		attempts++
		return boom
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 5, attempts) // 1 initial + 4 retries
}

func TestRunResumable_NotifyCalledOnEachRetry(t *testing.T) {
	attempts := 0
	notified := 0
	_ = RunResumable(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("timeout")
		}
		return nil
	}, func(err error, wait time.Duration) {
		notified++
	})
	assert.GreaterOrEqual(t, notified, 1)
}

func TestRunResumable_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := RunResumable(ctx, func() error {
		attempts++
		return errors.New("boom")
	}, nil)

	assert.Error(t, err)
}

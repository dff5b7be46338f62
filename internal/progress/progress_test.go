package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_MonotonicAndFinalMatchesTotalSent(t *testing.T) {
	var seen []uint64
	var mu sync.Mutex
	s := New(func(transferred uint64, total *uint64) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, transferred)
	})

	s.SetTotal(30)
	s.Add(10)
	s.Add(20)

	require.GreaterOrEqual(t, len(seen), 2)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, uint64(30), s.Transferred())
	require.NotNil(t, s.Total())
	assert.Equal(t, uint64(30), *s.Total())
}

func TestState_SetTotalOnlyWinsOnce(t *testing.T) {
	s := New(nil)
	s.SetTotal(100)
	s.SetTotal(200)
	assert.Equal(t, uint64(100), *s.Total())
}

func TestCancelToken_IdempotentAndWakesWaiters(t *testing.T) {
	tok := NewCancelToken()
	assert.False(t, tok.IsCancelled())

	done := make(chan struct{})
	go func() {
		<-tok.Done()
		close(done)
	}()

	tok.Cancel()
	tok.Cancel() // second call must not panic

	<-done
	assert.True(t, tok.IsCancelled())
}

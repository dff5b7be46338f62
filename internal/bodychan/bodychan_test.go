package bodychan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_StreamsChunksThenCloses(t *testing.T) {
	c := New(4)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, []byte("hello")))
	require.NoError(t, c.Send(ctx, []byte(" world")))
	c.Close()

	chunk, err, terminal := c.Next(ctx)
	require.NoError(t, err)
	assert.False(t, terminal)
	assert.Equal(t, []byte("hello"), chunk)

	chunk, err, terminal = c.Next(ctx)
	require.NoError(t, err)
	assert.False(t, terminal)
	assert.Equal(t, []byte(" world"), chunk)

	chunk, err, terminal = c.Next(ctx)
	assert.NoError(t, err)
	assert.True(t, terminal)
	assert.Nil(t, chunk)
}

func TestChannel_FailDeliversChunksBeforeError(t *testing.T) {
	c := New(4)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, []byte("a")))
	require.NoError(t, c.Send(ctx, []byte("b")))
	c.Fail(assertErr)

	chunk, err, terminal := c.Next(ctx)
	require.NoError(t, err)
	assert.False(t, terminal)
	assert.Equal(t, []byte("a"), chunk)

	chunk, err, terminal = c.Next(ctx)
	require.NoError(t, err)
	assert.False(t, terminal)
	assert.Equal(t, []byte("b"), chunk)

	_, err, terminal = c.Next(ctx)
	assert.True(t, terminal)
	assert.ErrorIs(t, err, assertErr)
}

func TestChannel_RepeatedNextReturnsSameTerminal(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	c.Fail(assertErr)

	_, err1, _ := c.Next(ctx)
	_, err2, _ := c.Next(ctx)
	assert.Same(t, err1, err2)
}

func TestChannel_SendAfterCloseReturnsErrClosed(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	c.Close()

	err := c.Send(ctx, []byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChannel_BackpressureBlocksProducer(t *testing.T) {
	c := New(1) // capacity 1 + 1 extra slot = 2 total buffer slots, both usable by Send
	ctx := context.Background()
	require.NoError(t, c.Send(ctx, []byte("1")))
	require.NoError(t, c.Send(ctx, []byte("2")))

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	err := c.Send(ctx2, []byte("3"))
	assert.ErrorIs(t, err, context.Canceled)
}

var assertErr = &testErr{"boom"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

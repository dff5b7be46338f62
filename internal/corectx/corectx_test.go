package corectx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_PublishHeadersResolvesOnce(t *testing.T) {
	c := New(4, nil)
	go c.PublishHeaders(Header{Status: 200, URL: "https://example/get"})

	h, err := c.AwaitHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, h.Status)

	// A second PublishHeaders must not block or change the result; the
	// future only ever resolves once.
	c.PublishHeaders(Header{Status: 500})
}

func TestContext_FailHeadersSurfacesError(t *testing.T) {
	c := New(4, nil)
	boom := errors.New("boom")
	c.FailHeaders(boom)

	_, err := c.AwaitHeaders(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestContext_AwaitHeadersUnblocksOnCancel(t *testing.T) {
	c := New(4, nil)
	c.Cancel.Cancel()

	_, err := c.AwaitHeaders(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContext_AwaitHeadersUnblocksOnContextDeadline(t *testing.T) {
	c := New(4, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.AwaitHeaders(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContext_NativeHandleRoundTrip(t *testing.T) {
	c := New(4, nil)
	assert.Nil(t, c.NativeHandle())

	c.SetNativeHandle(uintptr(0xdeadbeef))
	assert.Equal(t, uintptr(0xdeadbeef), c.NativeHandle())
}

func TestContext_ReleaseIsIdempotent(t *testing.T) {
	c := New(4, nil)
	assert.True(t, c.Release())
	assert.False(t, c.Release())
	assert.True(t, c.Released())
}

package handleregistry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterGetRelease(t *testing.T) {
	r := New[string]()

	h1 := r.Register("first")
	h2 := r.Register("second")
	assert.NotEqual(t, h1, h2)

	v, ok := r.Get(h1)
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	r.Release(h1)
	_, ok = r.Get(h1)
	assert.False(t, ok)

	v, ok = r.Get(h2)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	r := New[int]()
	h := r.Register(42)
	r.Release(h)
	r.Release(h)
	_, ok := r.Get(h)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Register(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 200, r.Len())
}

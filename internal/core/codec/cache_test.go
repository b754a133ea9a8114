package codec

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-mcproto/pkg/types"
)

func TestCache_SharedEntry(t *testing.T) {
	cache := NewCache()

	a, err := cache.Get(types.StatePlay, types.ToClient, "1.16.4", nil)
	require.NoError(t, err)
	b, err := cache.Get(types.StatePlay, types.ToClient, "1.16.4", nil)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, cache.Compiled())

	got, ok := cache.Lookup(a.Key())
	assert.True(t, ok)
	assert.Same(t, a, got)
}

func TestCache_DistinctKeys(t *testing.T) {
	cache := NewCache()
	custom, err := ParseCustomPackets([]byte(overlayYAML))
	require.NoError(t, err)

	plain, err := cache.Get(types.StatePlay, types.ToClient, "1.16.4", nil)
	require.NoError(t, err)
	custom1, err := cache.Get(types.StatePlay, types.ToClient, "1.16.4", custom)
	require.NoError(t, err)
	other, err := cache.Get(types.StatePlay, types.ToServer, "1.16.4", custom)
	require.NoError(t, err)

	assert.NotSame(t, plain, custom1)
	// 覆盖层不涉及 toServer，与未定制的条目共享同一个键
	assert.Empty(t, other.Key().Digest)
	assert.Equal(t, 3, cache.Len())
}

func TestCache_ConcurrentGetCompilesOnce(t *testing.T) {
	cache := NewCache()

	const n = 32
	results := make([]*Codec, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := cache.Get(types.StateLogin, types.ToClient, "1.12.2", nil)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, cache.Compiled())
}

func TestCache_ErrorNotCached(t *testing.T) {
	cache := NewCache()
	_, err := cache.Get(types.StatePlay, types.ToClient, "9.9", nil)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.Equal(t, 0, cache.Len())
}

func TestModule_ProvidesDefaultCache(t *testing.T) {
	var got *Cache
	app := fxtest.New(t,
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Same(t, Default(), got)
}

package mcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheEviction(t *testing.T) {
	cache, err := NewLRU[string](&LRUConfig{Size: 10})
	require.Nil(t, err)

	iCache, ok := cache.(*lru[string])
	require.True(t, ok)

	for i := 0; i < 20; i++ {
		cache.Add(uint64(i), "v")
	}
	require.Equal(t, 10, len(iCache.entries))
	require.Equal(t, 10, iCache.recentList.Len())
	_, ok = cache.Get(0)
	require.False(t, ok)
	_, ok = cache.Get(19)
	require.True(t, ok)
	hits, misses := cache.Stats()
	require.Equal(t, uint64(1), hits)
	require.Equal(t, uint64(1), misses)
}

func TestCacheRecency(t *testing.T) {
	cache, err := NewLRU[int](&LRUConfig{Size: 2})
	require.Nil(t, err)
	cache.Add(1, 1)
	cache.Add(2, 2)
	_, ok := cache.Get(1)
	require.True(t, ok)
	cache.Add(3, 3)
	_, ok = cache.Get(2)
	require.False(t, ok)
	v, ok := cache.Get(1)
	require.True(t, ok)
	require.Equal(t, 1, v)

	cache.Remove(1)
	require.Equal(t, 1, cache.Len())
	cache.Purge()
	require.Equal(t, 0, cache.Len())
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewLRU[int](&LRUConfig{Size: 0})
	require.NotNil(t, err)
}

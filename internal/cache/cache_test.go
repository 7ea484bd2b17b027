package cache_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSAPP-Labs/CSAPP-proxy/internal/cache"
)

const (
	maxObjectSize = 102400
	maxCacheSize  = 1049000
)

func artifact(n int) *cache.Artifact {
	return &cache.Artifact{Bytes: make([]byte, n), H: 0, B: n}
}

func TestInsertThenLookupHits(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	ok := c.Insert("http://example.test/a", artifact(10))
	require.True(t, ok)

	got, found := c.Lookup("http://example.test/a")
	require.True(t, found)
	assert.Equal(t, 10, got.B)
}

func TestLookupMissOnUnknownURL(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)
	_, found := c.Lookup("http://example.test/missing")
	assert.False(t, found)
}

func TestObjectAtCapIsCachedOverCapIsNot(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	assert.True(t, c.Insert("u1", artifact(maxObjectSize)))
	_, found := c.Lookup("u1")
	assert.True(t, found)

	assert.False(t, c.Insert("u2", artifact(maxObjectSize+1)))
	_, found = c.Lookup("u2")
	assert.False(t, found)
}

// TestLRUEviction is the literal scenario from spec.md §8.2.
func TestLRUEviction(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	require.True(t, c.Insert("u1", artifact(600000)))
	require.True(t, c.Insert("u2", artifact(400000)))

	require.True(t, c.Insert("u3", artifact(100000)))

	_, found := c.Lookup("u1")
	assert.False(t, found, "u1 should have been evicted")

	_, found = c.Lookup("u2")
	assert.True(t, found)

	_, found = c.Lookup("u3")
	assert.True(t, found)

	assert.Equal(t, 500000, c.TotalBytes())
	assert.Equal(t, 2, c.Len())
}

// TestRecencyPreservedAcrossEviction is the literal scenario from
// spec.md §8.3, continuing from §8.2's post-state.
func TestRecencyPreservedAcrossEviction(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	require.True(t, c.Insert("u1", artifact(600000)))
	require.True(t, c.Insert("u2", artifact(400000)))
	require.True(t, c.Insert("u3", artifact(100000))) // evicts u1

	_, found := c.Lookup("u2") // promote u2 to MRU; u3 becomes LRU
	require.True(t, found)

	require.True(t, c.Insert("u4", artifact(700000))) // forces eviction

	_, found = c.Lookup("u3")
	assert.False(t, found, "u3 was LRU after u2's promotion and should have been evicted")

	_, found = c.Lookup("u2")
	assert.True(t, found, "u2 was promoted and should survive")

	_, found = c.Lookup("u4")
	assert.True(t, found)
}

func TestEvictionEvictsExactlyAsManyAsNeeded(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	require.True(t, c.Insert("u1", artifact(300000)))
	require.True(t, c.Insert("u2", artifact(300000)))
	require.True(t, c.Insert("u3", artifact(300000)))

	require.True(t, c.Insert("u4", artifact(300000)))

	assert.Equal(t, 3, c.Len())
	_, found := c.Lookup("u1")
	assert.False(t, found)
	_, found = c.Lookup("u2")
	assert.True(t, found)
}

func TestDuplicateURLInsertIsTolerated(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	require.True(t, c.Insert("u1", artifact(10)))
	require.True(t, c.Insert("u1", artifact(20)))

	assert.Equal(t, 2, c.Len())

	got, found := c.Lookup("u1")
	require.True(t, found)
	assert.Equal(t, 20, got.B, "lookup should return the MRU duplicate")
}

func TestConcurrentLookupAndInsert(t *testing.T) {
	c := cache.New(maxObjectSize, maxCacheSize, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Insert("u", artifact(1000))
		}(i)
		go func() {
			defer wg.Done()
			c.Lookup("u")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.TotalBytes(), maxCacheSize)
}

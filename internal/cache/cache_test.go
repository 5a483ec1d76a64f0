package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(3)
	c.Insert(1, "a")
	c.Insert(2, "b")
	c.Insert(3, "c")

	_, _ = c.Get(1) // touch 1, so 2 becomes LRU
	c.Insert(4, "d")

	_, ok := c.Get(2)
	assert.False(t, ok, "entry 2 should have been evicted")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestTestDoesNotAffectRecency(t *testing.T) {
	c := New(2)
	c.Insert(1, "a")
	c.Insert(2, "b")

	assert.True(t, c.Test(1))
	stats := c.Statistics()
	assert.Zero(t, stats.Hits)

	c.Insert(3, "c")
	_, ok := c.Get(1)
	assert.False(t, ok, "Test should not have protected entry 1 from eviction")
}

func TestTouchProtectsFromEviction(t *testing.T) {
	c := New(2)
	c.Insert(1, "a")
	c.Insert(2, "b")

	c.Touch(1)
	c.Insert(3, "c")

	_, ok := c.Get(1)
	assert.True(t, ok, "Touch should have protected entry 1 from eviction")
}

func TestNextNthEviction(t *testing.T) {
	c := New(2)
	c.Insert(1, "a")
	c.Insert(2, "b")

	key, ok := c.NextNthEviction(1)
	assert.True(t, ok)
	assert.Equal(t, int64(1), key)

	// Peeking must not mutate the cache.
	assert.True(t, c.Test(1))
	assert.True(t, c.Test(2))

	_, ok = c.NextNthEviction(5)
	assert.False(t, ok)
}

func TestUnusedEntriesCountedOnEviction(t *testing.T) {
	c := New(1)
	c.Insert(1, "a") // never Get'd
	c.Insert(2, "b") // evicts 1

	stats := c.Statistics()
	assert.Equal(t, uint64(1), stats.UnusedEntries)
}

func TestClearEmptiesCache(t *testing.T) {
	c := New(4)
	c.Insert(1, "a")
	c.Insert(2, "b")
	c.Clear()

	assert.False(t, c.Test(1))
	assert.False(t, c.Test(2))
}

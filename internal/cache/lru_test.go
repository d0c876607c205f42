package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "1")
	c.Set("a", "2")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", got)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_Expiration(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")

	clock.Advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Size(), "expired entry is dropped on read")
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_DeletePrefixAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("overview:2024-03", "x")
	c.Set("overview:2024-04", "y")
	c.Set("status:c1:2024-03", "z")

	assert.Equal(t, 2, c.DeletePrefix("overview:"))
	assert.Equal(t, 1, c.Size())

	c.Delete("status:c1:2024-03")
	assert.Zero(t, c.Size())

	c.Set("a", "1")
	c.Purge()
	assert.Zero(t, c.Size())
	c.Set("b", "2")
	assert.Equal(t, 1, c.Size(), "cache stays usable after purge")
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("old", "1")
	clock.Advance(30 * time.Second)
	c.Set("new", "2")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, c.CleanExpired())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				key := fmt.Sprintf("k%d", (g*100+i)%75)
				c.Set(key, i)
				c.Get(key)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}

func TestManager_CleanNowAndStop(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	clock.Advance(2 * time.Minute)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
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

func TestEphemeral_GetSetExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewEphemeral[string](time.Minute, WithClock[string](clock.Now))

	c.Set("a", "alpha", 0)
	c.Set("b", "beta", 10*time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "alpha", v)

	clock.Advance(10 * time.Second)
	_, ok = c.Get("b")
	assert.False(t, ok, "expires exactly at its deadline")
	assert.Equal(t, 1, c.Len(), "expired entry is deleted on read")

	clock.Advance(49 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestEphemeral_NoBackgroundSweep(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	c := NewEphemeral[int](time.Second, WithClock[int](clock.Now))
	c.Set("k", 1, 0)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Len(), "expired entries linger until read")
}

func TestEphemeral_DeleteAndPrefix(t *testing.T) {
	t.Parallel()

	c := NewEphemeral[int](time.Minute)
	c.Set("style:1", 1, 0)
	c.Set("style:2", 2, 0)
	c.Set("styles:list:50", 3, 0)
	c.Set("jobs:recent:20", 4, 0)

	c.Delete("style:1", "missing")
	_, ok := c.Get("style:1")
	assert.False(t, ok)

	assert.Equal(t, 2, c.DeletePrefix("style"))
	assert.Equal(t, 1, c.Len())
	_, ok = c.Get("jobs:recent:20")
	assert.True(t, ok)
}

func TestEphemeral_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewEphemeral[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k"
			c.Set(key, i, 0)
			c.Get(key)
			c.DeletePrefix("x")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

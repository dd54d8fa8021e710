package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTier(capacity int, ttl time.Duration, clock *fakeClock) (*Tier[string], *Tracker) {
	tracker := NewTracker(clock.Now)
	tier := NewTier[string](TierOptions{
		Name:       "test",
		Capacity:   capacity,
		DefaultTTL: ttl,
		Metrics:    tracker,
		Now:        clock.Now,
	})
	return tier, tracker
}

// TestTierTTL 到期前可读，到期时刻及之后返回缺失并删除条目
func TestTierTTL(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(10, time.Minute, clock)

	tier.Set("k", "v", 0)

	clock.Advance(59 * time.Second)
	v, ok := tier.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(time.Second)
	_, ok = tier.Get("k")
	assert.False(t, ok, "entry must be absent exactly at createdAt+ttl")
	assert.Equal(t, 0, tier.Len(), "expired entry must be removed on read")
}

func TestTierPerEntryTTL(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(10, time.Hour, clock)

	tier.Set("short", "a", 10*time.Second)
	tier.Set("long", "b", 0)

	clock.Advance(30 * time.Second)
	_, ok := tier.Get("short")
	assert.False(t, ok)
	_, ok = tier.Get("long")
	assert.True(t, ok)
}

func TestTierOverwriteResetsTimer(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(10, time.Minute, clock)

	tier.Set("k", "v1", 0)
	clock.Advance(50 * time.Second)
	tier.Set("k", "v2", 0)
	clock.Advance(50 * time.Second)

	v, ok := tier.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, tier.Len())
}

// TestTierRoundTripAccessCount set 后立即 get，AccessCount 恰好加 1
func TestTierRoundTripAccessCount(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(10, time.Minute, clock)

	tier.Set("k", "v", 0)
	first, ok := tier.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "v", first.Data)
	assert.Equal(t, 1, first.AccessCount)

	clock.Advance(time.Second)
	second, ok := tier.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, first.AccessCount+1, second.AccessCount)
	assert.Equal(t, clock.Now(), second.LastAccessed)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestTierCapacityNeverExceeded(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(5, time.Minute, clock)

	for i := 0; i < 50; i++ {
		tier.Set(fmt.Sprintf("k%d", i), "v", 0)
		require.LessOrEqual(t, tier.Len(), 5)
	}
	stats := tier.Stats()
	assert.Equal(t, 5, stats.Size)
	assert.Equal(t, int64(45), stats.Evictions)
}

// TestTierLRUEviction 淘汰最久未访问的条目，而不是最早创建的条目
func TestTierLRUEviction(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(3, time.Hour, clock)

	tier.Set("a", "1", 0)
	clock.Advance(time.Second)
	tier.Set("b", "2", 0)
	clock.Advance(time.Second)
	tier.Set("c", "3", 0)
	clock.Advance(time.Second)

	_, ok := tier.Get("a")
	require.True(t, ok)
	clock.Advance(time.Second)

	tier.Set("d", "4", 0)

	_, ok = tier.Get("b")
	assert.False(t, ok, "b has the oldest lastAccessed and must be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := tier.Get(key)
		assert.True(t, ok, key)
	}
}

func TestTierOverwriteDoesNotEvict(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(2, time.Hour, clock)

	tier.Set("a", "1", 0)
	tier.Set("b", "2", 0)
	tier.Set("a", "3", 0)

	assert.Equal(t, 2, tier.Len())
	assert.Equal(t, int64(0), tier.Stats().Evictions)
}

func TestTierSweep(t *testing.T) {
	clock := newFakeClock()
	tier, _ := newTestTier(10, time.Minute, clock)

	tier.Set("old", "1", 0)
	clock.Advance(30 * time.Second)
	tier.Set("new", "2", 0)
	clock.Advance(30 * time.Second)

	removed := tier.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, tier.Len())
	_, ok := tier.Get("new")
	assert.True(t, ok)
}

func TestTierMetrics(t *testing.T) {
	clock := newFakeClock()
	tier, tracker := newTestTier(10, time.Minute, clock)

	tier.Get("missing")
	tier.Set("k", "v", 0)
	tier.Get("k")
	tier.Get("k")
	clock.Advance(time.Minute)
	tier.Get("k")

	m := tracker.Snapshot(tier.Len())
	assert.Equal(t, int64(4), m.QueryCount)
	assert.InDelta(t, 0.5, m.CacheHitRate, 1e-9)
	assert.Equal(t, 0, m.TotalCacheSize)

	clock.Advance(time.Hour)
	tracker.Reset()
	m = tracker.Snapshot(0)
	assert.Equal(t, int64(0), m.QueryCount)
	assert.Equal(t, 0.0, m.CacheHitRate)
	assert.Equal(t, clock.Now(), m.LastReset)
}

func TestTierConcurrentSet(t *testing.T) {
	tier := NewTier[int](TierOptions{Name: "concurrent", Capacity: 64, DefaultTTL: time.Minute})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("w%d-%d", w, i)
				tier.Set(key, i, 0)
				tier.Get(key)
				if n := tier.Len(); n > 64 {
					t.Errorf("capacity exceeded: %d", n)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 64, tier.Len())
}

func TestTierClearAndDelete(t *testing.T) {
	tier := NewTier[string](TierOptions{Name: "x", Capacity: 4})
	tier.Set("a", "1", 0)
	tier.Set("b", "2", 0)

	assert.True(t, tier.Delete("a"))
	assert.False(t, tier.Delete("a"))
	tier.Clear()
	assert.Equal(t, 0, tier.Len())
}

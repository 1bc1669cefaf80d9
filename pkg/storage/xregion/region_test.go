package xregion

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock 可手动推进的时间源。
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegion(t *testing.T, name string, cfg RegionConfig, clock *fakeClock) *Region {
	t.Helper()
	m, err := New(WithRegion(name, cfg), WithClock(clock.Now))
	require.NoError(t, err)
	r, ok := m.Region(name)
	require.True(t, ok)
	return r
}

func TestGetSetRoundTrip(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "content", RegionConfig{Capacity: 10, TTL: time.Minute}, clock)

	_, hit := r.Get("k")
	assert.False(t, hit)

	r.Set("k", "v")
	value, hit := r.Get("k")
	require.True(t, hit)
	assert.Equal(t, "v", value)
}

func TestTTLBoundary(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "activity", RegionConfig{Capacity: 10, TTL: 30 * time.Second}, clock)

	r.Set("k", 42)

	// createdAt + ttl - ε：仍然命中
	clock.Advance(30*time.Second - time.Millisecond)
	value, hit := r.Get("k")
	require.True(t, hit)
	assert.Equal(t, 42, value)

	// createdAt + ttl + ε：未命中，条目被惰性删除
	clock.Advance(2 * time.Millisecond)
	_, hit = r.Get("k")
	assert.False(t, hit)
	assert.Equal(t, 0, r.Len())
}

func TestTTLOverride(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "mixed", RegionConfig{Capacity: 10, TTL: time.Minute}, clock)

	r.Set("short", "a", 5*time.Second)
	r.Set("long", "b")

	clock.Advance(10 * time.Second)
	_, hit := r.Get("short")
	assert.False(t, hit)
	_, hit = r.Get("long")
	assert.True(t, hit)
}

func TestLRUEviction(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "ordinals", RegionConfig{Capacity: 2, TTL: time.Hour, Strategy: StrategyLRU}, clock)

	// 插入 A、B，访问 A，再插入 C：淘汰 B
	r.Set("A", 1)
	r.Set("B", 2)
	_, hit := r.Get("A")
	require.True(t, hit)
	r.Set("C", 3)

	_, hit = r.Get("B")
	assert.False(t, hit)
	_, hit = r.Get("A")
	assert.True(t, hit)
	_, hit = r.Get("C")
	assert.True(t, hit)
	assert.Equal(t, 2, r.Len())
}

func TestLRUSetCountsAsAccess(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "lru", RegionConfig{Capacity: 2, TTL: time.Hour, Strategy: StrategyLRU}, clock)

	r.Set("A", 1)
	r.Set("B", 2)
	// 覆盖写 A 刷新其访问时间
	r.Set("A", 10)
	r.Set("C", 3)

	_, hit := r.Get("B")
	assert.False(t, hit)
	value, hit := r.Get("A")
	require.True(t, hit)
	assert.Equal(t, 10, value)
}

func TestFIFOEviction(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "fifo", RegionConfig{Capacity: 2, TTL: time.Hour, Strategy: StrategyFIFO}, clock)

	r.Set("A", 1)
	clock.Advance(time.Second)
	r.Set("B", 2)

	// FIFO 不关心访问：读 A 不影响淘汰顺序
	_, hit := r.Get("A")
	require.True(t, hit)

	clock.Advance(time.Second)
	r.Set("C", 3)

	_, hit = r.Get("A")
	assert.False(t, hit)
	_, hit = r.Get("B")
	assert.True(t, hit)
	_, hit = r.Get("C")
	assert.True(t, hit)
}

func TestCapacityNeverExceeded(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "cap", RegionConfig{Capacity: 3, TTL: time.Hour}, clock)

	for i := 0; i < 10; i++ {
		r.Set(fmt.Sprintf("k%d", i), i)
		assert.LessOrEqual(t, r.Len(), 3)
	}
	assert.Equal(t, 3, r.Len())
}

func TestDeleteAndClear(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "del", RegionConfig{Capacity: 10, TTL: time.Hour}, clock)

	r.Set("a", 1)
	r.Set("b", 2)

	assert.True(t, r.Delete("a"))
	assert.False(t, r.Delete("a"))
	assert.Equal(t, 1, r.Len())

	r.Clear()
	assert.Equal(t, 0, r.Len())

	// 清空后淘汰顺序同步复位：重新插满不会误淘汰
	r.Set("x", 1)
	r.Set("y", 2)
	_, hit := r.Get("x")
	assert.True(t, hit)
}

func TestInvalidateMatching(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "inv", RegionConfig{Capacity: 10, TTL: time.Hour}, clock)

	r.Set("etchings:list:limit=20", 1)
	r.Set("etchings:list:limit=50", 2)
	r.Set("etchings:get:UNCOMMON", 3)

	count, err := r.InvalidateMatching("etchings:list:*")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, r.Len())

	_, hit := r.Get("etchings:get:UNCOMMON")
	assert.True(t, hit)
}

func TestInvalidateMatchingBadPattern(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "inv2", RegionConfig{Capacity: 10, TTL: time.Hour}, clock)
	r.Set("a", 1)

	_, err := r.InvalidateMatching("[") // 非法 pattern
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestStats(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "stats", RegionConfig{Capacity: 10, TTL: time.Hour}, clock)

	r.Set("hot", 1)
	r.Set("warm", 2)
	r.Set("cold", 3)
	for i := 0; i < 5; i++ {
		r.Get("hot")
	}
	r.Get("warm")

	stats := r.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, uint64(6), stats.HitCount)
	require.NotEmpty(t, stats.TopEntries)
	assert.Equal(t, "hot", stats.TopEntries[0].Key)
	assert.Equal(t, uint64(5), stats.TopEntries[0].Hits)
}

func TestPrune(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "prune", RegionConfig{Capacity: 10, TTL: 10 * time.Second}, clock)

	r.Set("old", 1)
	clock.Advance(5 * time.Second)
	r.Set("fresh", 2)
	clock.Advance(6 * time.Second) // old 过期，fresh 未过期

	assert.Equal(t, 1, r.Prune())
	assert.Equal(t, 1, r.Len())
	_, hit := r.Get("fresh")
	assert.True(t, hit)
}

func TestConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegion(t, "conc", RegionConfig{Capacity: 50, TTL: time.Hour}, clock)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%60)
				if i%3 == 0 {
					r.Set(key, i)
				} else {
					r.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), 50)
}

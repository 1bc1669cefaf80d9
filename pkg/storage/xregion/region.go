package xregion

import (
	"path"
	"sort"
	"sync"
	"time"
)

// topEntriesLimit Stats 返回的热点条目数量上限。
const topEntriesLimit = 5

// Recorder 接收区域级缓存事件，用于接入指标系统。
// 实现必须轻量：回调在区域锁内同步执行。
type Recorder interface {
	Hit(region string)
	Miss(region string)
	Evict(region string)
	Size(region string, n int)
}

// noopRecorder 缺省的空实现。
type noopRecorder struct{}

func (noopRecorder) Hit(string)       {}
func (noopRecorder) Miss(string)      {}
func (noopRecorder) Evict(string)     {}
func (noopRecorder) Size(string, int) {}

// entry 区域内的单个缓存条目，只被所属区域的方法修改。
type entry struct {
	data      any
	createdAt time.Time
	ttl       time.Duration
	hits      uint64
}

// expired 判断条目在 now 时刻是否已过期。
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// EntryStat 单个条目的命中统计。
type EntryStat struct {
	Key  string
	Hits uint64
}

// Stats 区域统计快照。
type Stats struct {
	// Size 当前条目数（可能包含已过期但尚未被读到或清扫的条目）。
	Size int

	// HitCount 区域累计命中次数。
	HitCount uint64

	// TopEntries 按命中次数降序排列的热点条目，最多 5 条。
	TopEntries []EntryStat
}

// RegionConfig 单个区域的配置。
type RegionConfig struct {
	// Capacity 最大条目数，必须 > 0。
	Capacity int

	// TTL 缺省过期时间，必须 > 0。Set 可逐条覆盖。
	TTL time.Duration

	// Strategy 淘汰策略，缺省 StrategyLRU。
	Strategy Strategy
}

// Region 是一个独立配置的命名缓存区域。
// 必须通过 Manager 创建；所有方法并发安全。
type Region struct {
	name       string
	capacity   int
	defaultTTL time.Duration
	strategy   Strategy

	mu      sync.Mutex
	entries map[string]*entry
	policy  evictionPolicy

	hitCount uint64

	now      func() time.Time
	recorder Recorder
}

func newRegion(name string, cfg RegionConfig, now func() time.Time, rec Recorder) (*Region, error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if cfg.TTL <= 0 {
		return nil, ErrInvalidTTL
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyLRU
	}
	policy, err := newPolicy(strategy, cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &Region{
		name:       name,
		capacity:   cfg.Capacity,
		defaultTTL: cfg.TTL,
		strategy:   strategy,
		entries:    make(map[string]*entry, cfg.Capacity),
		policy:     policy,
		now:        now,
		recorder:   rec,
	}, nil
}

// Name 返回区域名。
func (r *Region) Name() string { return r.name }

// Get 获取缓存值。条目不存在或已过期返回 (nil, false)；
// 过期条目在读取时被删除（惰性过期）。
func (r *Region) Get(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		r.recorder.Miss(r.name)
		return nil, false
	}
	if e.expired(r.now()) {
		r.removeLocked(key)
		r.recorder.Miss(r.name)
		return nil, false
	}

	e.hits++
	r.hitCount++
	r.policy.noteAccess(key)
	r.recorder.Hit(r.name)
	return e.data, true
}

// Set 写入缓存值，可用 ttlOverride 覆盖区域缺省 TTL（<= 0 的覆盖值被忽略）。
// 新 key 写入已满区域时先按策略淘汰一条。
func (r *Region) Set(key string, value any, ttlOverride ...time.Duration) {
	ttl := r.defaultTTL
	if len(ttlOverride) > 0 && ttlOverride[0] > 0 {
		ttl = ttlOverride[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; !exists && len(r.entries) >= r.capacity {
		if victim, ok := r.policy.evict(); ok {
			delete(r.entries, victim)
			r.recorder.Evict(r.name)
		}
	}

	r.entries[key] = &entry{
		data:      value,
		createdAt: r.now(),
		ttl:       ttl,
	}
	r.policy.noteInsert(key)
	r.recorder.Size(r.name, len(r.entries))
}

// Delete 删除条目，返回 key 是否存在。
func (r *Region) Delete(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return false
	}
	r.removeLocked(key)
	return true
}

// Clear 清空区域内全部条目。
func (r *Region) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*entry, r.capacity)
	r.policy.clear()
	r.recorder.Size(r.name, 0)
}

// InvalidateMatching 删除 key 匹配 pattern 的全部条目，返回删除数量。
// pattern 使用 path.Match 通配语法（如 "etchings:list:*"）。
func (r *Region) InvalidateMatching(pattern string) (int, error) {
	// 先校验 pattern，避免遍历到一半才发现语法错误
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key := range r.entries {
		if matched, _ := path.Match(pattern, key); matched { //nolint:errcheck // pattern 已预先校验
			r.removeLocked(key)
			count++
		}
	}
	return count, nil
}

// Len 返回当前条目数。
func (r *Region) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats 返回区域统计快照。
func (r *Region) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	top := make([]EntryStat, 0, len(r.entries))
	for key, e := range r.entries {
		top = append(top, EntryStat{Key: key, Hits: e.hits})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Hits != top[j].Hits {
			return top[i].Hits > top[j].Hits
		}
		return top[i].Key < top[j].Key
	})
	if len(top) > topEntriesLimit {
		top = top[:topEntriesLimit]
	}

	return Stats{
		Size:       len(r.entries),
		HitCount:   r.hitCount,
		TopEntries: top,
	}
}

// Prune 清除全部已过期条目，返回清除数量。
// 周期清扫用于回收无人再读的过期条目，与读路径的惰性过期互补。
func (r *Region) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	count := 0
	for key, e := range r.entries {
		if e.expired(now) {
			r.removeLocked(key)
			count++
		}
	}
	return count
}

// removeLocked 删除条目并同步淘汰顺序。调用方必须持有 r.mu。
func (r *Region) removeLocked(key string) {
	delete(r.entries, key)
	r.policy.remove(key)
	r.recorder.Size(r.name, len(r.entries))
}

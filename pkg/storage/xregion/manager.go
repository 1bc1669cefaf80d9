package xregion

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule 周期清扫的缺省调度（cron 表达式）。
const DefaultPruneSchedule = "@every 5m"

// Manager 管理一组命名区域，并负责周期清扫的生命周期。
// 必须通过 [New] 创建；所有方法并发安全。
type Manager struct {
	regions map[string]*Region
	order   []string

	pruneSchedule string
	lifecycleMu   sync.Mutex
	cron          *cron.Cron
	logger        *slog.Logger
	closed        atomic.Bool
}

// Option Manager 配置选项。
type Option func(*managerOptions)

type managerOptions struct {
	regions       map[string]RegionConfig
	order         []string
	duplicates    []string
	now           func() time.Time
	logger        *slog.Logger
	recorder      Recorder
	pruneSchedule string
}

// WithRegion 声明一个命名区域。至少需要声明一个；
// 同名区域重复声明会使 [New] 返回 ErrDuplicateRegion。
func WithRegion(name string, cfg RegionConfig) Option {
	return func(o *managerOptions) {
		if _, dup := o.regions[name]; dup {
			o.duplicates = append(o.duplicates, name)
			return
		}
		o.order = append(o.order, name)
		o.regions[name] = cfg
	}
}

// WithClock 注入时间源，用于测试 TTL 行为。
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger 注入日志器。缺省不输出日志。
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder 注入缓存事件接收器（如 xmetrics.Cache）。
func WithRecorder(rec Recorder) Option {
	return func(o *managerOptions) {
		if rec != nil {
			o.recorder = rec
		}
	}
}

// WithPruneSchedule 设置周期清扫的 cron 调度表达式，缺省每 5 分钟。
func WithPruneSchedule(spec string) Option {
	return func(o *managerOptions) {
		if spec != "" {
			o.pruneSchedule = spec
		}
	}
}

// New 创建区域缓存管理器。
// 未声明任何区域返回 ErrNoRegions；区域配置非法时返回对应错误。
func New(opts ...Option) (*Manager, error) {
	options := &managerOptions{
		regions:       make(map[string]RegionConfig),
		now:           time.Now,
		logger:        slog.New(slog.DiscardHandler),
		recorder:      noopRecorder{},
		pruneSchedule: DefaultPruneSchedule,
	}
	for _, opt := range opts {
		opt(options)
	}

	if len(options.duplicates) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRegion, options.duplicates[0])
	}
	if len(options.regions) == 0 {
		return nil, ErrNoRegions
	}

	m := &Manager{
		regions:       make(map[string]*Region, len(options.regions)),
		order:         options.order,
		pruneSchedule: options.pruneSchedule,
		logger:        options.logger,
	}
	for _, name := range options.order {
		region, err := newRegion(name, options.regions[name], options.now, options.recorder)
		if err != nil {
			return nil, fmt.Errorf("xregion: region %q: %w", name, err)
		}
		m.regions[name] = region
	}
	return m, nil
}

// Region 按名称返回区域。
func (m *Manager) Region(name string) (*Region, bool) {
	r, ok := m.regions[name]
	return r, ok
}

// Regions 按声明顺序返回全部区域名。
func (m *Manager) Regions() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Get 从指定区域获取缓存值。
func (m *Manager) Get(region, key string) (any, bool, error) {
	r, ok := m.regions[region]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	value, hit := r.Get(key)
	return value, hit, nil
}

// Set 向指定区域写入缓存值。
func (m *Manager) Set(region, key string, value any, ttlOverride ...time.Duration) error {
	r, ok := m.regions[region]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	r.Set(key, value, ttlOverride...)
	return nil
}

// Delete 从指定区域删除条目。
func (m *Manager) Delete(region, key string) (bool, error) {
	r, ok := m.regions[region]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	return r.Delete(key), nil
}

// Clear 清空指定区域。
func (m *Manager) Clear(region string) error {
	r, ok := m.regions[region]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	r.Clear()
	return nil
}

// InvalidateMatching 删除指定区域内 key 匹配 pattern 的条目，返回删除数量。
func (m *Manager) InvalidateMatching(region, pattern string) (int, error) {
	r, ok := m.regions[region]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	return r.InvalidateMatching(pattern)
}

// Stats 返回指定区域的统计快照。
func (m *Manager) Stats(region string) (Stats, error) {
	r, ok := m.regions[region]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	return r.Stats(), nil
}

// AllStats 返回全部区域的统计快照。
func (m *Manager) AllStats() map[string]Stats {
	stats := make(map[string]Stats, len(m.regions))
	for name, r := range m.regions {
		stats[name] = r.Stats()
	}
	return stats
}

// PruneAll 立即清扫全部区域的过期条目，返回清除总数。
func (m *Manager) PruneAll() int {
	total := 0
	for _, name := range m.order {
		if n := m.regions[name].Prune(); n > 0 {
			m.logger.Debug("xregion: pruned expired entries",
				slog.String("region", name), slog.Int("count", n))
			total += n
		}
	}
	return total
}

// StartPruning 启动周期清扫。重复调用是无害的（只启动一次）。
// 调度表达式非法时返回错误。
func (m *Manager) StartPruning() error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if m.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(m.pruneSchedule, func() { m.PruneAll() }); err != nil {
		return fmt.Errorf("xregion: invalid prune schedule %q: %w", m.pruneSchedule, err)
	}
	c.Start()
	m.cron = c
	return nil
}

// Close 停止周期清扫。幂等。
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.cron != nil {
		// Stop 返回的 context 等待进行中的清扫完成
		<-m.cron.Stop().Done()
		m.cron = nil
	}
	return nil
}

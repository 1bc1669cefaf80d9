package ordapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/ordkit/pkg/channel/xpush"
	"github.com/omeyang/ordkit/pkg/config/xconf"
	"github.com/omeyang/ordkit/pkg/resilience/xdedup"
	"github.com/omeyang/ordkit/pkg/resilience/xexec"
	"github.com/omeyang/ordkit/pkg/storage/xregion"
)

// Client 弹性访问客户端，聚合 HTTP 接入、区域缓存、并发去重、
// 限流重试执行器与推送通道。必须通过 [New] 创建。
//
// 设计决策：读取路径的各个环节都是独立构件（xregion/xdedup/xexec），
// Client 只负责按固定顺序编排，便于单独替换与观测。
type Client struct {
	rest  *restClient
	cache *xregion.Manager
	dedup *xdedup.Deduper
	exec  *xexec.Executor
	push  *xpush.Client

	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	closed     atomic.Bool
}

// Option 客户端配置选项。
type Option func(*clientOptions)

type clientOptions struct {
	logger        *slog.Logger
	httpClient    *http.Client
	cacheRecorder xregion.Recorder
	pushRecorder  xpush.Recorder
	breaker       *gobreaker.Settings
}

// WithLogger 注入日志器。缺省不输出日志。
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient 注入自定义 HTTP 客户端（如测试替身或带代理的传输层）。
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCacheRecorder 注入缓存事件接收器（如 xmetrics.CacheRecorder）。
func WithCacheRecorder(rec xregion.Recorder) Option {
	return func(o *clientOptions) {
		if rec != nil {
			o.cacheRecorder = rec
		}
	}
}

// WithPushRecorder 注入推送通道事件接收器（如 xmetrics.ChannelRecorder）。
func WithPushRecorder(rec xpush.Recorder) Option {
	return func(o *clientOptions) {
		if rec != nil {
			o.pushRecorder = rec
		}
	}
}

// WithBreaker 为执行器启用熔断。缺省不熔断。
func WithBreaker(settings gobreaker.Settings) Option {
	return func(o *clientOptions) {
		o.breaker = &settings
	}
}

// New 按配置创建客户端。零值 Settings 等价于 xconf.DefaultSettings()。
// 创建即启动缓存周期清扫；推送通道需调用 [Client.Connect] 显式建立。
func New(settings xconf.Settings, opts ...Option) (*Client, error) {
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	options := &clientOptions{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(options)
	}

	regionOpts := []xregion.Option{
		xregion.WithLogger(options.logger),
		xregion.WithPruneSchedule(settings.Cache.PruneSchedule),
	}
	if options.cacheRecorder != nil {
		regionOpts = append(regionOpts, xregion.WithRecorder(options.cacheRecorder))
	}
	for name, region := range settings.Cache.Regions {
		regionOpts = append(regionOpts, xregion.WithRegion(name, xregion.RegionConfig{
			Capacity: region.Capacity,
			TTL:      region.TTL,
			Strategy: xregion.Strategy(region.Strategy),
		}))
	}
	// 健康检查的缓存自测使用独立的小区域，避免探测写入淘汰业务条目
	if _, ok := settings.Cache.Regions[healthRegion]; !ok {
		regionOpts = append(regionOpts, xregion.WithRegion(healthRegion, xregion.RegionConfig{
			Capacity: 1,
			TTL:      time.Minute,
		}))
	}
	cache, err := xregion.New(regionOpts...)
	if err != nil {
		return nil, fmt.Errorf("ordapi: build cache failed: %w", err)
	}
	if err := cache.StartPruning(); err != nil {
		_ = cache.Close() //nolint:errcheck // 创建失败路径，尽力回收
		return nil, fmt.Errorf("ordapi: start cache pruning failed: %w", err)
	}

	execOpts := []xexec.Option{
		xexec.WithMaxRequests(settings.Executor.MaxRequests),
		xexec.WithWindow(settings.Executor.Window),
		xexec.WithLogger(options.logger),
	}
	if options.breaker != nil {
		execOpts = append(execOpts, xexec.WithBreaker(*options.breaker))
	}

	pushOpts := []xpush.Option{
		xpush.WithLogger(options.logger),
		xpush.WithPingInterval(settings.Channel.PingInterval),
		xpush.WithPongTimeout(settings.Channel.PongTimeout),
		xpush.WithReconnectInterval(settings.Channel.ReconnectBase, settings.Channel.ReconnectCap),
		xpush.WithMaxReconnectAttempts(settings.Channel.MaxReconnectAttempts),
	}
	if options.pushRecorder != nil {
		pushOpts = append(pushOpts, xpush.WithRecorder(options.pushRecorder))
	}
	push, err := xpush.New(settings.Channel.URL, pushOpts...)
	if err != nil {
		_ = cache.Close() //nolint:errcheck // 创建失败路径，尽力回收
		return nil, fmt.Errorf("ordapi: build push channel failed: %w", err)
	}

	// 设计决策: 去重执行不设独立超时。共享执行运行的是完整重试序列，
	// 任何固定预算都可能在慢请求或窗口排队时把序列中途掐断；
	// 单次请求已由 HTTP 客户端超时兜底，尝试次数与退避均有限，
	// 序列总时长天然有界。
	return &Client{
		rest:       newRESTClient(settings.Provider.BaseURL, settings.Provider.APIKey, settings.Provider.Timeout, options.httpClient),
		cache:      cache,
		dedup:      xdedup.New(xdedup.WithExecTimeout(0)),
		exec:       xexec.New(execOpts...),
		push:       push,
		logger:     options.logger,
		maxRetries: settings.Executor.MaxRetries,
		baseDelay:  settings.Executor.BaseDelay,
	}, nil
}

// Connect 建立推送通道连接。阻塞到首次连接成功或失败。
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.push.Connect(ctx)
}

// Close 关闭客户端：断开推送通道并停止缓存清扫。幂等。
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.push.Disconnect()
	if cerr := c.cache.Close(); cerr != nil && !errors.Is(cerr, xregion.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	return err
}

// Cache 返回区域缓存管理器，用于统计查询与显式失效。
func (c *Client) Cache() *xregion.Manager { return c.cache }

// Push 返回推送通道客户端，用于订阅管理与消息流消费。
func (c *Client) Push() *xpush.Client { return c.push }

// Executor 返回限流执行器，用于统计查询与指标采集。
func (c *Client) Executor() *xexec.Executor { return c.exec }

// fetchCached 统一读取路径：缓存命中直接返回；未命中时对同一 key 的
// 并发请求去重合并，经限流重试执行器发起调用，成功后写回缓存。
func fetchCached[T any](ctx context.Context, c *Client, region, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c.closed.Load() {
		return zero, ErrClosed
	}

	cached, hit, err := c.cache.Get(region, key)
	if err == nil && hit {
		if value, ok := cached.(T); ok {
			return value, nil
		}
		// 类型不符说明 key 被跨类型复用，按未命中处理
		c.logger.Warn("ordapi: cached value type mismatch",
			slog.String("region", region), slog.String("key", key))
	}

	value, _, err := xdedup.Do(ctx, c.dedup, key, func(ctx context.Context) (T, error) {
		return xexec.ExecuteWithRetry(ctx, c.exec, fn, c.maxRetries, c.baseDelay)
	})
	if err != nil {
		return zero, err
	}

	// 合并的调用方各自写回同一值，重复 Set 是幂等的
	if err := c.cache.Set(region, key, value); err != nil {
		c.logger.Warn("ordapi: cache write-back failed",
			slog.String("region", region), slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return value, nil
}

package xconf

import (
	"fmt"
	"time"

	"github.com/omeyang/ordkit/pkg/channel/xpush"
	"github.com/omeyang/ordkit/pkg/resilience/xexec"
	"github.com/omeyang/ordkit/pkg/storage/xregion"
)

// Settings 访问层的完整类型化配置。
type Settings struct {
	Provider ProviderSettings `koanf:"provider"`
	Channel  ChannelSettings  `koanf:"channel"`
	Executor ExecutorSettings `koanf:"executor"`
	Cache    CacheSettings    `koanf:"cache"`
}

// ProviderSettings 上游数据提供方的 HTTP 接入配置。
type ProviderSettings struct {
	// BaseURL 提供方 API 的基础地址。
	BaseURL string `koanf:"base_url"`

	// APIKey 静态凭证，经 X-API-Key 头发送。
	APIKey string `koanf:"api_key"`

	// Timeout 单次请求超时。
	Timeout time.Duration `koanf:"timeout"`
}

// ChannelSettings 推送通道配置。
type ChannelSettings struct {
	URL                  string        `koanf:"url"`
	ReconnectBase        time.Duration `koanf:"reconnect_base"`
	ReconnectCap         time.Duration `koanf:"reconnect_cap"`
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
	PingInterval         time.Duration `koanf:"ping_interval"`
	PongTimeout          time.Duration `koanf:"pong_timeout"`
}

// ExecutorSettings 限流与重试配置。
type ExecutorSettings struct {
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
	MaxRetries  int           `koanf:"max_retries"`
	BaseDelay   time.Duration `koanf:"base_delay"`
}

// RegionSettings 单个缓存区域配置。
type RegionSettings struct {
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`
	Strategy string        `koanf:"strategy"`
}

// CacheSettings 缓存配置。
type CacheSettings struct {
	// PruneSchedule 周期清扫的 cron 表达式。
	PruneSchedule string `koanf:"prune_schedule"`

	// Regions 命名区域配置，键为区域名。
	Regions map[string]RegionSettings `koanf:"regions"`
}

// 缺省缓存区域名。高频变动的活动类数据用短 TTL，近不变的内容类数据用长 TTL。
const (
	RegionEtchings     = "etchings"
	RegionInscriptions = "inscriptions"
	RegionBalances     = "balances"
	RegionActivity     = "activity"
)

// DefaultSettings 返回内置缺省配置，对默认部署零配置可用。
func DefaultSettings() Settings {
	return Settings{
		Provider: ProviderSettings{
			BaseURL: "https://api.ordstream.io/v1",
			Timeout: 15 * time.Second,
		},
		Channel: ChannelSettings{
			URL:                  "wss://push.ordstream.io/v1/stream",
			ReconnectBase:        xpush.DefaultReconnectBase,
			ReconnectCap:         xpush.DefaultReconnectCap,
			MaxReconnectAttempts: xpush.DefaultMaxReconnectAttempts,
			PingInterval:         xpush.DefaultPingInterval,
			PongTimeout:          xpush.DefaultPongTimeout,
		},
		Executor: ExecutorSettings{
			MaxRequests: xexec.DefaultMaxRequests,
			Window:      xexec.DefaultWindow,
			MaxRetries:  3,
			BaseDelay:   xexec.DefaultBaseDelay,
		},
		Cache: CacheSettings{
			PruneSchedule: xregion.DefaultPruneSchedule,
			Regions: map[string]RegionSettings{
				RegionEtchings: {
					Capacity: 500,
					TTL:      10 * time.Minute,
					Strategy: string(xregion.StrategyLRU),
				},
				RegionInscriptions: {
					Capacity: 1000,
					TTL:      time.Hour,
					Strategy: string(xregion.StrategyLRU),
				},
				RegionBalances: {
					Capacity: 500,
					TTL:      time.Minute,
					Strategy: string(xregion.StrategyFIFO),
				},
				RegionActivity: {
					Capacity: 1000,
					TTL:      30 * time.Second,
					Strategy: string(xregion.StrategyFIFO),
				},
			},
		},
	}
}

// WithDefaults 返回补齐缺省值后的配置。只补零值，不覆盖显式设置的字段。
func (s Settings) WithDefaults() Settings {
	s.normalize()
	return s
}

// normalize 用缺省值补齐未设置的字段。只补零值，不覆盖显式配置。
func (s *Settings) normalize() {
	def := DefaultSettings()
	if s.Provider.BaseURL == "" {
		s.Provider.BaseURL = def.Provider.BaseURL
	}
	if s.Provider.Timeout <= 0 {
		s.Provider.Timeout = def.Provider.Timeout
	}
	if s.Channel.URL == "" {
		s.Channel.URL = def.Channel.URL
	}
	if s.Channel.ReconnectBase <= 0 {
		s.Channel.ReconnectBase = def.Channel.ReconnectBase
	}
	if s.Channel.ReconnectCap <= 0 {
		s.Channel.ReconnectCap = def.Channel.ReconnectCap
	}
	if s.Channel.MaxReconnectAttempts <= 0 {
		s.Channel.MaxReconnectAttempts = def.Channel.MaxReconnectAttempts
	}
	if s.Channel.PingInterval <= 0 {
		s.Channel.PingInterval = def.Channel.PingInterval
	}
	if s.Channel.PongTimeout <= 0 {
		s.Channel.PongTimeout = def.Channel.PongTimeout
	}
	if s.Executor.MaxRequests <= 0 {
		s.Executor.MaxRequests = def.Executor.MaxRequests
	}
	if s.Executor.Window <= 0 {
		s.Executor.Window = def.Executor.Window
	}
	if s.Executor.MaxRetries < 0 {
		s.Executor.MaxRetries = def.Executor.MaxRetries
	}
	if s.Executor.BaseDelay <= 0 {
		s.Executor.BaseDelay = def.Executor.BaseDelay
	}
	if s.Cache.PruneSchedule == "" {
		s.Cache.PruneSchedule = def.Cache.PruneSchedule
	}
	if len(s.Cache.Regions) == 0 {
		s.Cache.Regions = def.Cache.Regions
		return
	}
	for name, region := range s.Cache.Regions {
		if region.Strategy == "" {
			region.Strategy = string(xregion.StrategyLRU)
		}
		s.Cache.Regions[name] = region
	}
}

// Validate 检查配置值的合法性。normalize 之后调用。
func (s *Settings) Validate() error {
	for name, region := range s.Cache.Regions {
		if region.Capacity <= 0 {
			return fmt.Errorf("%w: cache region %q capacity must be positive", ErrInvalidSettings, name)
		}
		if region.TTL <= 0 {
			return fmt.Errorf("%w: cache region %q ttl must be positive", ErrInvalidSettings, name)
		}
		switch xregion.Strategy(region.Strategy) {
		case xregion.StrategyLRU, xregion.StrategyFIFO:
		default:
			return fmt.Errorf("%w: cache region %q has unknown strategy %q", ErrInvalidSettings, name, region.Strategy)
		}
	}
	return nil
}

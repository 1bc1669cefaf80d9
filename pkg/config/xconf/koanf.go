package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// DefaultEnvPrefix 环境变量覆盖层的缺省前缀。
const DefaultEnvPrefix = "ORDKIT_"

// Config 配置实例。基础键值操作直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回底层的 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 将指定路径的配置反序列化到目标结构体。
	// path 为空字符串时反序列化整个配置。
	Unmarshal(path string, target any) error

	// Settings 返回补齐缺省值并通过校验的完整类型化配置。
	Settings() (Settings, error)

	// Reload 重新加载配置（文件层与环境变量层都会重读）。并发安全。
	// 仅对从文件创建的实例有效。
	Reload() error

	// Path 返回配置文件路径，非文件来源返回空字符串。
	Path() string

	// Format 返回配置格式。
	Format() Format
}

// Options 加载选项。
type Options struct {
	// Delim 配置键分隔符，缺省 "."。
	Delim string

	// Tag 反序列化使用的结构体标签，缺省 "koanf"。
	Tag string

	// EnvPrefix 环境变量覆盖层的前缀，空字符串禁用环境变量层。
	EnvPrefix string
}

// Option 配置选项函数。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim:     ".",
		Tag:       "koanf",
		EnvPrefix: DefaultEnvPrefix,
	}
}

// WithDelim 设置配置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithEnvPrefix 设置环境变量前缀，空字符串禁用环境变量覆盖层。
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}

// koanfConfig 是 Config 接口的 koanf 实现。
type koanfConfig struct {
	path   string
	format Format
	raw    []byte // 非文件来源的原始数据
	opts   *Options

	mu sync.RWMutex
	k  *koanf.Koanf
}

var _ Config = (*koanfConfig)(nil)

// New 从文件创建配置实例，按扩展名识别格式（.yaml/.yml/.json）。
func New(path string, opts ...Option) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &koanfConfig{path: path, format: format, opts: options}
	k, err := c.build()
	if err != nil {
		return nil, err
	}
	c.k = k
	return c, nil
}

// NewFromBytes 从字节数据创建配置实例，需显式指定格式。
// 空数据创建空配置（只含环境变量层与缺省值）。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &koanfConfig{format: format, raw: data, opts: options}
	k, err := c.build()
	if err != nil {
		return nil, err
	}
	c.k = k
	return c, nil
}

// build 重建 koanf 实例：文件/字节层在下，环境变量层覆盖在上。
func (c *koanfConfig) build() (*koanf.Koanf, error) {
	data := c.raw
	if c.path != "" {
		read, err := os.ReadFile(c.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		data = read
	}

	k := koanf.New(c.opts.Delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parserFor(c.format)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	if prefix := c.opts.EnvPrefix; prefix != "" {
		// ORDKIT_PROVIDER__BASE_URL → provider.base_url：
		// 双下划线表示层级，单下划线保留为键名的一部分
		err := k.Load(env.Provider(prefix, c.opts.Delim, func(s string) string {
			s = strings.TrimPrefix(s, prefix)
			s = strings.ToLower(s)
			return strings.ReplaceAll(s, "__", c.opts.Delim)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
	}
	return k, nil
}

// Client 返回底层的 koanf 实例。
func (c *koanfConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

// Unmarshal 将指定路径的配置反序列化到目标结构体。
func (c *koanfConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{
		Tag: c.opts.Tag,
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Settings 返回补齐缺省值并通过校验的完整类型化配置。
func (c *koanfConfig) Settings() (Settings, error) {
	var s Settings
	if err := c.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Reload 重新加载配置。
func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrNotReloadable
	}
	k, err := c.build()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.k = k
	c.mu.Unlock()
	return nil
}

// Path 返回配置文件路径。
func (c *koanfConfig) Path() string { return c.path }

// Format 返回配置格式。
func (c *koanfConfig) Format() Format { return c.format }

func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

func parserFor(format Format) koanf.Parser {
	if format == FormatJSON {
		return json.Parser()
	}
	return yaml.Parser()
}

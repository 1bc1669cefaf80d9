package xregion

import "errors"

var (
	// ErrUnknownRegion 表示访问了未配置的区域。
	ErrUnknownRegion = errors.New("xregion: unknown region")

	// ErrDuplicateRegion 表示同名区域被重复配置。
	ErrDuplicateRegion = errors.New("xregion: duplicate region")

	// ErrInvalidCapacity 表示区域容量无效（必须 > 0）。
	ErrInvalidCapacity = errors.New("xregion: invalid capacity, must be > 0")

	// ErrInvalidTTL 表示缺省 TTL 无效（必须 > 0）。
	ErrInvalidTTL = errors.New("xregion: invalid ttl, must be > 0")

	// ErrInvalidStrategy 表示淘汰策略无效。
	ErrInvalidStrategy = errors.New("xregion: invalid eviction strategy")

	// ErrNoRegions 表示 Manager 构造时未配置任何区域。
	ErrNoRegions = errors.New("xregion: at least one region is required")

	// ErrClosed 表示 Manager 已关闭。
	ErrClosed = errors.New("xregion: manager closed")
)

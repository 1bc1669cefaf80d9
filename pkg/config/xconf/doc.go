// Package xconf 提供访问层的分层配置加载。
//
// 配置按三层叠加，后者覆盖前者：
//
//  1. 内置缺省值（零配置即可对默认部署工作）
//  2. 配置文件（YAML 或 JSON，按扩展名自动识别）
//  3. 环境变量（ORDKIT_ 前缀，双下划线映射为层级分隔，
//     如 ORDKIT_PROVIDER__BASE_URL → provider.base_url）
//
// 典型用法：
//
//	cfg, err := xconf.New("/etc/ordkit/config.yaml")
//	if err != nil { ... }
//	settings, err := cfg.Settings()
//
// Settings 返回带缺省值的完整类型化配置；需要访问未建模的键时
// 使用 Client() 拿到底层 koanf 实例。
//
// 支持通过 Watch 监视配置文件变更并自动重载（基于 fsnotify）。
package xconf

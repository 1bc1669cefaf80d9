// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: Prometheus 指标适配器（缓存、推送通道、执行器）
package observability

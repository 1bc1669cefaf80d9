// Package ordapi 提供比特币 ordinals 数据提供方的弹性访问客户端。
//
// 客户端覆盖三类资源：符文蚀刻（etchings）、铭文（inscriptions）与
// 代币余额（balances），读取路径统一为：
//
//	构造缓存 key → 区域缓存查询 → 未命中时并发去重 → 限流重试执行器发起
//	HTTP 调用 → 结果写回缓存 → 返回调用方
//
// 推送事件由独立的通道客户端送达，不经过缓存。Facade 层另提供
// 跨资源的健康检查、搜索与热门查询（并发扇出、部分成功合并）。
//
// 错误以稳定错误码归一化，调用方用 errors.Is 对哨兵判断：
//
//	etching, err := client.GetEtching(ctx, "UNCOMMON•GOODS")
//	if errors.Is(err, ordapi.ErrNotFound) { ... }
package ordapi

// Package xregion 提供按命名区域划分的进程内 TTL 缓存。
//
// 每个 Region 拥有独立的容量、缺省 TTL 和淘汰策略（LRU 或 FIFO），
// 适合为不同变更频率的数据族配置不同的缓存行为：
// 高频变更的 "activity" 数据用短 TTL，近似不可变的 "content" 数据用长 TTL。
//
// # 语义
//
//   - 过期惰性检查：Get 发现条目超过 TTL 时删除并返回未命中，
//     另有可选的周期清扫（Manager.StartPruning，缺省每 5 分钟）兜底回收
//     无人再读的过期条目
//   - 容量淘汰：Set 新 key 且区域已满时先淘汰一条再写入，
//     LRU 淘汰最久未访问的 key（访问 = Get 或 Set），FIFO 淘汰 createdAt 最老的条目
//   - 写入完成后区域大小永不超过配置容量
//
// # 并发
//
// 所有方法并发安全。check-then-evict-then-insert 在同一把区域锁内完成，
// 淘汰判断与写入之间不会被其他 goroutine 插入。
package xregion

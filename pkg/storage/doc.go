// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xregion: 进程内命名区域缓存，键级 TTL 加 LRU/FIFO 容量淘汰
package storage

// Package xdedup 提供按缓存 key 合并并发请求的去重器。
//
// 同一 key 的并发调用共享同一次底层执行：首个调用者触发执行，
// 其余调用者挂接到同一个未决结果上，全部收到相同的成功值或相同的失败。
// 执行结束（无论成败）的瞬间注销登记，下一个到达的调用者会触发全新执行。
//
// # 取消语义
//
// 底层执行使用脱离调用方取消链的 context（保留 Value，不继承 Done），
// 并带独立超时。首个调用者取消只影响它自己的等待，不会连累其他等待者。
//
// # 泛型
//
// Do 是泛型包级函数（与 xexec.Execute 同一模式）：
//
//	etching, shared, err := xdedup.Do(ctx, d, "etchings:get:X", fetchEtching)
package xdedup

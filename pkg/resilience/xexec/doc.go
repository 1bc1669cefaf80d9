// Package xexec 提供限流加重试的出站调用执行器。
//
// 执行器维护一个滑动请求窗口：窗口内已派发数达到上限后，新调用进入
// FIFO 等待队列而不是直接失败；排空协程在窗口复位后按入队顺序发放名额。
//
// # 重试
//
// ExecuteWithRetry 按归一化错误分类决定是否重试：4xx（除 429）立即上抛，
// 429/5xx/网络类错误以 baseDelay × 2^n 的指数退避重试到上限。
// 限流与重试的优先级是明确的：本地窗口排队在先，只有派发出去的调用
// 仍返回 429 时才进入退避重试，两层不会对同一次 429 重复等待。
//
// 底层使用 avast/retry-go/v5；每次重试尝试都重新经过窗口检查。
//
// # 熔断
//
// 可选通过 WithBreaker 挂接 sony/gobreaker 熔断器。熔断拒绝的调用
// 返回 ErrBreakerOpen 且不进入重试。
package xexec

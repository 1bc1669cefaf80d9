// Package xpush 提供带心跳保活与订阅重放的自动重连推送通道客户端。
//
// 客户端维护一条到上游推送端点的长连接，状态机为
// Disconnected → Connecting → Connected →（Closing →）Disconnected：
//   - Connect 时已连接立即返回；正在连接则挂接到进行中的尝试，不会发起第二条连接
//   - 连接成功后复位重连计数、启动心跳、重放全部已登记订阅、冲刷断线期间积压的出站消息
//   - 意外断开（非显式 Disconnect）按 min(base × attemptNumber, cap) 的延迟调度重连，
//     连续失败达到上限后停止并恰好发出一次 StatusExhausted，此后不再自动重连，
//     直到调用方再次 Connect
//   - 心跳每 pingInterval 发送 {"type":"ping"} 并武装单发 pong 定时器；
//     超时未收到 pong 则强制断开，走重连路径
//
// # 订阅登记表
//
// Subscribe/Unsubscribe 立即更新登记表；已连接时同步发送注册/注销消息，
// 未连接时只改登记表，由重连成功后的整表重放送达最终状态（不逐条补发中间变更，
// 避免重复注册）。登记表是重放的唯一事实来源，调用方不可绕过客户端直接改动。
//
// # 入站分发
//
// 入站消息按 type 标签分发到封闭的消息类别集合，每个类别一条通知流；
// 未知类别记日志后丢弃，不会断开连接。
//
// 客户端是显式构造、显式传递的组件，不提供进程级单例。
package xpush

// Package restcore 提供 REST 访问层的共享基础设施（ordapi 与各 resilience 包共同使用）。
//
// 包含三部分：
//   - 归一化错误分类：把上游 HTTP 响应 / 网络错误转换为带稳定错误码的 *APIError
//   - 分页参数约束：limit 限制在 [1,100]，offset 限制在 >= 0
//   - 缓存 key 构造：按域/操作/参数生成稳定 key，超长参数串用 xxhash 指纹压缩
//
// 设计决策: 错误前缀使用 "ordkit:" 而非 "restcore:"，因为这些错误会被 ordapi
// 重导出给终端用户，通用前缀避免暴露 internal 包名。
package restcore

package restcore

// 分页参数约束。列表接口的 limit 限制在 [MinLimit, MaxLimit]，
// 未指定（<= 0）时使用 DefaultLimit；offset 限制在 >= 0。
const (
	// MinLimit 单页最小条目数。
	MinLimit = 1

	// MaxLimit 单页最大条目数。
	MaxLimit = 100

	// DefaultLimit 未指定 limit 时的缺省值。
	DefaultLimit = 20
)

// ClampLimit 把 limit 约束到合法区间。
// limit <= 0 视为未指定，返回 DefaultLimit；超过 MaxLimit 截断到 MaxLimit。
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ClampOffset 把 offset 约束到 >= 0。
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

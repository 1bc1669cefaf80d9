package xexec

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/ordkit/internal/restcore"
)

// backoffDelay 计算第 n 次重试前的退避延迟：base × 2^(n-1)。
// retry-go v5 的 DelayType 中 n 从 1 开始；移位封顶防止溢出。
func backoffDelay(base time.Duration, n uint) time.Duration {
	if n == 0 {
		n = 1
	}
	shift := n - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << shift
}

// ExecuteWithRetry 经过窗口限流执行 fn，失败时按错误类别重试。
//
// 重试规则：
//   - 4xx（除 429）不重试，立即上抛
//   - 429/5xx/网络类错误重试，最多 maxRetries 次（总尝试 maxRetries+1 次）
//   - 每次尝试前延迟 baseDelay × 2^n，n 为已失败次数
//   - ctx 取消立即终止
//
// maxRetries < 0 视为 0；baseDelay <= 0 使用 DefaultBaseDelay。
// 每次尝试都重新经过窗口检查，窗口排队时间不计入退避延迟。
//
// 这是泛型函数，必须作为包级函数使用。
func ExecuteWithRetry[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error), maxRetries int, baseDelay time.Duration) (T, error) {
	var zero T
	if e == nil {
		return zero, ErrNilExecutor
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	return retry.NewWithData[T](
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)+1),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, ErrBreakerOpen) {
				return false
			}
			return restcore.IsRetryable(err)
		}),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			return backoffDelay(baseDelay, n)
		}),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying after transient failure", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	).Do(func() (T, error) {
		return Execute(ctx, e, fn)
	})
}

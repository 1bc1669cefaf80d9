package xexec

import "errors"

var (
	// ErrNilExecutor 表示执行器为 nil。
	ErrNilExecutor = errors.New("xexec: nil executor")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xexec: nil context")

	// ErrNilFunc 表示传入的执行函数为 nil。
	ErrNilFunc = errors.New("xexec: nil func")

	// ErrBreakerOpen 表示调用被熔断器拒绝，未实际派发。
	// 熔断拒绝不可重试：重试只会在熔断窗口内继续被拒。
	ErrBreakerOpen = errors.New("xexec: circuit breaker open")
)

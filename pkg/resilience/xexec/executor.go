package xexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/ordkit/internal/restcore"
)

// 缺省配置。
const (
	// DefaultMaxRequests 每个窗口内无需排队即可派发的最大调用数。
	DefaultMaxRequests = 60

	// DefaultWindow 滑动窗口时长。
	DefaultWindow = time.Minute

	// DefaultBaseDelay 重试退避的基础延迟。
	DefaultBaseDelay = 500 * time.Millisecond

	// maxBackoffShift 退避移位上限，防止大尝试次数下的时长溢出。
	maxBackoffShift = 16
)

// waiter 队列中的单个等待者。
// granted 在"排空协程发放名额"与"等待者因 ctx 取消退出"之间做唯一裁决：
// 谁先 CAS 成功谁生效，名额既不会丢失也不会被重复消费。
type waiter struct {
	ready   chan struct{}
	granted atomic.Bool
}

// Stats 执行器统计快照。
type Stats struct {
	// WindowStart 当前窗口起点。
	WindowStart time.Time

	// InWindow 当前窗口内已派发的调用数。
	InWindow int

	// QueueLen 当前等待队列长度。
	QueueLen int

	// Dispatched 累计派发的调用数。
	Dispatched uint64

	// Queued 累计进入过等待队列的调用数。
	Queued uint64
}

// Executor 限流执行器。
// 零值不可用，必须通过 [New] 创建；所有方法并发安全。
type Executor struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
	breaker     *gobreaker.CircuitBreaker[any]

	mu          sync.Mutex
	windowStart time.Time
	count       int
	queue       []*waiter
	draining    bool

	dispatched atomic.Uint64
	queued     atomic.Uint64
}

// Option 配置选项。
type Option func(*Executor)

// WithMaxRequests 设置每窗口最大派发数。n <= 0 被忽略。
func WithMaxRequests(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxRequests = n
		}
	}
}

// WithWindow 设置窗口时长。d <= 0 被忽略。
func WithWindow(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithClock 设置时间源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 设置日志器，缺省丢弃日志。
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBreaker 挂接熔断器。缺省不熔断。
func WithBreaker(settings gobreaker.Settings) Option {
	return func(e *Executor) {
		e.breaker = gobreaker.NewCircuitBreaker[any](settings)
	}
}

// New 创建执行器。
func New(opts ...Option) *Executor {
	e := &Executor{
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.windowStart = e.now()
	return e
}

// Stats 返回统计快照。
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		WindowStart: e.windowStart,
		InWindow:    e.count,
		QueueLen:    len(e.queue),
		Dispatched:  e.dispatched.Load(),
		Queued:      e.queued.Load(),
	}
}

// resetIfElapsedLocked 窗口时长已过则复位。调用方必须持有 e.mu。
func (e *Executor) resetIfElapsedLocked() {
	now := e.now()
	if now.Sub(e.windowStart) >= e.window {
		e.windowStart = now
		e.count = 0
	}
}

// acquire 获取一个派发名额，窗口满时排队等待。
// 队列非空时新来者一律排队，保证严格 FIFO。
func (e *Executor) acquire(ctx context.Context) error {
	e.mu.Lock()
	e.resetIfElapsedLocked()
	if len(e.queue) == 0 && e.count < e.maxRequests {
		e.count++
		e.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	e.queue = append(e.queue, w)
	e.queued.Add(1)
	if !e.draining {
		e.draining = true
		go e.drain()
	}
	queueLen := len(e.queue)
	e.mu.Unlock()

	e.logger.Debug("call queued: rate window exhausted", "queue_len", queueLen)

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if w.granted.CompareAndSwap(false, true) {
			return ctx.Err()
		}
		// 名额已在取消的同时发放，照常消费
		<-w.ready
		return nil
	}
}

// drain 排空协程：窗口复位后按 FIFO 发放名额，队列清空后退出。
// 同一执行器最多只有一个排空协程在运行（由 draining 标志保证）。
func (e *Executor) drain() {
	for {
		e.mu.Lock()
		e.resetIfElapsedLocked()
		for len(e.queue) > 0 && e.count < e.maxRequests {
			w := e.queue[0]
			e.queue = e.queue[1:]
			if !w.granted.CompareAndSwap(false, true) {
				// 等待者已取消，跳过且不消费名额
				continue
			}
			e.count++
			close(w.ready)
		}
		if len(e.queue) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		wait := e.window - e.now().Sub(e.windowStart)
		e.mu.Unlock()

		if wait > 0 {
			time.Sleep(wait)
		}
	}
}

// dispatch 实际派发一次调用，可选经过熔断器，错误统一归一化。
func dispatch[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	e.dispatched.Add(1)

	if e.breaker == nil {
		result, err := fn(ctx)
		if err != nil {
			return zero, restcore.Normalize(err)
		}
		return result, nil
	}

	v, err := e.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
		}
		return zero, restcore.Normalize(err)
	}
	result, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("xexec: unexpected result type %T", v)
	}
	return result, nil
}

// Execute 经过窗口限流执行 fn，不重试。
// 窗口已满时阻塞排队直到获得名额或 ctx 取消。
// 返回的错误已归一化为 *restcore.APIError（context 取消除外）。
//
// 这是泛型函数，必须作为包级函数使用（方法不支持类型参数）。
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
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
	if err := e.acquire(ctx); err != nil {
		return zero, err
	}
	return dispatch(ctx, e, fn)
}

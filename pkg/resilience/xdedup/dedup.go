package xdedup

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultExecTimeout 底层执行的缺省独立超时。
// 脱离调用方取消链后需要此超时防止上游挂起时 goroutine 永久阻塞。
const defaultExecTimeout = 30 * time.Second

var (
	// ErrNilDeduper 表示去重器为 nil。
	ErrNilDeduper = errors.New("xdedup: nil deduper")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xdedup: nil context")

	// ErrNilFunc 表示传入的执行函数为 nil。
	ErrNilFunc = errors.New("xdedup: nil func")

	// errUnexpectedType 表示 singleflight 返回了非预期类型。
	// 只会在同一 key 被不同结果类型复用时出现，属于调用方编程错误。
	errUnexpectedType = errors.New("xdedup: unexpected result type for key")
)

// Deduper 合并同一 key 的并发执行。
// 零值不可用，必须通过 [New] 创建；所有方法并发安全。
type Deduper struct {
	group       singleflight.Group
	execTimeout time.Duration
}

// Option 配置选项。
type Option func(*Deduper)

// WithExecTimeout 设置底层执行的独立超时。
// d == 0 禁用超时；d < 0 被忽略（保持缺省 30s）。
func WithExecTimeout(d time.Duration) Option {
	return func(dd *Deduper) {
		if d >= 0 {
			dd.execTimeout = d
		}
	}
}

// New 创建去重器。
func New(opts ...Option) *Deduper {
	d := &Deduper{execTimeout: defaultExecTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Forget 丢弃 key 的未决登记，使下一个调用者触发全新执行。
// 正常情况下无需调用：执行结束时登记自动注销。
func (d *Deduper) Forget(key string) {
	if d == nil {
		return
	}
	d.group.Forget(key)
}

// detachedCtx 脱离原始取消链的 context：保留 Value，不继承 Done/Err/Deadline。
type detachedCtx struct {
	context.Context
}

func (c detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c detachedCtx) Done() <-chan struct{}       { return nil }
func (c detachedCtx) Err() error                  { return nil }

// execContext 为共享执行创建脱离调用方取消链、带独立超时的 context。
func (d *Deduper) execContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := detachedCtx{Context: ctx}
	if d.execTimeout == 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, d.execTimeout)
}

// Do 以 key 去重执行 fn。
// 返回值 shared 表示结果是否被多个调用者共享（即本次调用挂接到了已有执行上，
// 或有后来者挂接到了本次执行上）。
//
// 这是泛型函数，必须作为包级函数使用（方法不支持类型参数）。
//
// 设计决策: 使用 singleflight.DoChan 而非 Do，调用方保留独立的 ctx 取消能力：
// 调用方取消只放弃自己的等待，共享执行继续完成供其他等待者使用。
func Do[T any](ctx context.Context, d *Deduper, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	if d == nil {
		return zero, false, ErrNilDeduper
	}
	if ctx == nil {
		return zero, false, ErrNilContext
	}
	if fn == nil {
		return zero, false, ErrNilFunc
	}

	execCtx, cancel := d.execContext(ctx)

	ch := d.group.DoChan(key, func() (any, error) {
		defer cancel()
		return fn(execCtx)
	})

	select {
	case <-ctx.Done():
		// 调用方放弃等待；共享执行继续，结果仍会交付其他等待者
		return zero, false, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return zero, result.Shared, result.Err
		}
		value, ok := result.Val.(T)
		if !ok {
			return zero, result.Shared, errUnexpectedType
		}
		return value, result.Shared, nil
	}
}

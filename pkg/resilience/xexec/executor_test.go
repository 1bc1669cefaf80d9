package xexec

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/ordkit/internal/restcore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func okFn(v int) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) { return v, nil }
}

func TestExecuteValidation(t *testing.T) {
	e := New()

	_, err := Execute[int](context.Background(), nil, okFn(1))
	assert.ErrorIs(t, err, ErrNilExecutor)

	//nolint:staticcheck // 刻意传 nil 验证防御
	_, err = Execute[int](nil, e, okFn(1))
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = Execute[int](context.Background(), e, nil)
	assert.ErrorIs(t, err, ErrNilFunc)
}

func TestExecuteDispatch(t *testing.T) {
	e := New(WithMaxRequests(5), WithWindow(time.Minute))

	value, err := Execute(context.Background(), e, okFn(7))
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	stats := e.Stats()
	assert.Equal(t, 1, stats.InWindow)
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(0), stats.Queued)
}

func TestExecuteNormalizesError(t *testing.T) {
	e := New()

	_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})
	assert.ErrorIs(t, err, restcore.ErrNetworkError)
}

func TestWindowQueueing(t *testing.T) {
	const window = 80 * time.Millisecond
	e := New(WithMaxRequests(2), WithWindow(window))

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := Execute(context.Background(), e, okFn(i))
		require.NoError(t, err)
	}

	// 第 3 个调用排队，窗口复位后才派发
	var dispatchedAt time.Time
	_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
		dispatchedAt = time.Now()
		return 3, nil
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, dispatchedAt.Sub(start), window)
	assert.Equal(t, uint64(1), e.Stats().Queued)
}

func TestWindowNeverExceeded(t *testing.T) {
	const window = 60 * time.Millisecond
	e := New(WithMaxRequests(3), WithWindow(window))

	var mu sync.Mutex
	dispatchTimes := make([]time.Time, 0, 8)
	fn := func(ctx context.Context) (int, error) {
		mu.Lock()
		dispatchTimes = append(dispatchTimes, time.Now())
		mu.Unlock()
		return 0, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Execute(context.Background(), e, fn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 任意一个窗口时长内派发不超过 3 次
	for i := range dispatchTimes {
		inWindow := 0
		for j := range dispatchTimes {
			d := dispatchTimes[j].Sub(dispatchTimes[i])
			if d >= 0 && d < window {
				inWindow++
			}
		}
		assert.LessOrEqual(t, inWindow, 3)
	}
}

func TestQueueFIFO(t *testing.T) {
	e := New(WithMaxRequests(1), WithWindow(40*time.Millisecond))

	// 占满窗口
	_, err := Execute(context.Background(), e, okFn(0))
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
			assert.NoError(t, err)
		}(i)
		// 等本次调用入队后再提交下一个，固定入队顺序
		require.Eventually(t, func() bool {
			return e.Stats().Queued == uint64(i)
		}, time.Second, time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestQueuedCallCancel(t *testing.T) {
	e := New(WithMaxRequests(1), WithWindow(100*time.Millisecond))

	_, err := Execute(context.Background(), e, okFn(0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Execute(ctx, e, okFn(1))
		done <- err
	}()
	require.Eventually(t, func() bool {
		return e.Stats().QueueLen == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter did not return")
	}
	// 取消的等待者不消费名额；等排空协程退出再断言，避免泄漏误报
	require.Eventually(t, func() bool {
		return e.Stats().QueueLen == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), e.Stats().Dispatched)
}

func TestRetryClientErrorNotRetried(t *testing.T) {
	e := New()

	var attempts atomic.Int64
	_, err := ExecuteWithRetry(context.Background(), e, func(ctx context.Context) (int, error) {
		attempts.Add(1)
		return 0, restcore.NewAPIError(404)
	}, 3, time.Millisecond)

	assert.ErrorIs(t, err, restcore.ErrNotFound)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestRetryServerErrorThenSuccess(t *testing.T) {
	e := New()

	var attempts atomic.Int64
	value, err := ExecuteWithRetry(context.Background(), e, func(ctx context.Context) (int, error) {
		if attempts.Add(1) <= 3 {
			return 0, restcore.NewAPIError(503)
		}
		return 42, nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, int64(4), attempts.Load())
}

func TestRetryExhausted(t *testing.T) {
	e := New()

	var attempts atomic.Int64
	_, err := ExecuteWithRetry(context.Background(), e, func(ctx context.Context) (int, error) {
		attempts.Add(1)
		return 0, restcore.NewAPIError(503)
	}, 2, time.Millisecond)

	assert.ErrorIs(t, err, restcore.ErrServerError)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestRetryRateLimited(t *testing.T) {
	e := New()

	var attempts atomic.Int64
	value, err := ExecuteWithRetry(context.Background(), e, func(ctx context.Context) (int, error) {
		if attempts.Add(1) == 1 {
			return 0, restcore.NewAPIError(429)
		}
		return 1, nil
	}, 3, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 1, value)
	assert.Equal(t, int64(2), attempts.Load())
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, base, backoffDelay(base, 1))
	assert.Equal(t, 2*base, backoffDelay(base, 2))
	assert.Equal(t, 4*base, backoffDelay(base, 3))
	// n == 0 防御性归一到 1
	assert.Equal(t, base, backoffDelay(base, 0))
	// 大 n 不溢出为负
	assert.Positive(t, backoffDelay(base, 63))
}

func TestBreakerRejectsAfterFailures(t *testing.T) {
	e := New(WithBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	}))

	_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
		return 0, restcore.NewAPIError(503)
	})
	require.Error(t, err)

	// 熔断打开后的调用被拒绝，且不进入重试
	var attempts atomic.Int64
	_, err = ExecuteWithRetry(context.Background(), e, func(ctx context.Context) (int, error) {
		attempts.Add(1)
		return 1, nil
	}, 3, time.Millisecond)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int64(0), attempts.Load())
}

package xdedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDoValidation(t *testing.T) {
	d := New()
	fn := func(ctx context.Context) (int, error) { return 0, nil }

	_, _, err := Do[int](context.Background(), nil, "k", fn)
	assert.ErrorIs(t, err, ErrNilDeduper)

	//nolint:staticcheck // 刻意传 nil 验证防御
	_, _, err = Do[int](nil, d, "k", fn)
	assert.ErrorIs(t, err, ErrNilContext)

	_, _, err = Do[int](context.Background(), d, "k", nil)
	assert.ErrorIs(t, err, ErrNilFunc)
}

func TestDoSingleCaller(t *testing.T) {
	d := New()

	value, shared, err := Do(context.Background(), d, "k", func(ctx context.Context) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, "v", value)
}

func TestDoMergesConcurrentCallers(t *testing.T) {
	d := New()

	var calls atomic.Int64
	release := make(chan struct{})
	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = Do(context.Background(), d, "same-key", fn)
		}(i)
	}

	// 等全部调用者挂接后再放行底层执行
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
}

func TestDoErrorSharedByAllCallers(t *testing.T) {
	d := New()
	wantErr := errors.New("boom")

	release := make(chan struct{})
	var calls atomic.Int64
	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, wantErr
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = Do(context.Background(), d, "k", fn)
		}(i)
	}
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, errs[i], wantErr)
	}
}

func TestDoFreshExecutionAfterCompletion(t *testing.T) {
	d := New()

	var calls atomic.Int64
	fn := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	first, _, err := Do(context.Background(), d, "k", fn)
	require.NoError(t, err)
	second, _, err := Do(context.Background(), d, "k", fn)
	require.NoError(t, err)

	// 执行结束即注销登记，后来者触发全新执行
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestDoCallerCancelDoesNotAbortExecution(t *testing.T) {
	d := New()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	fn := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		done <- ctx.Err()
		return 7, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, _, err := Do(ctx, d, "k", fn)
	assert.ErrorIs(t, err, context.Canceled)

	// 首个调用者取消后共享执行继续：其 ctx 未被取消
	close(release)
	select {
	case execErr := <-done:
		assert.NoError(t, execErr)
	case <-time.After(time.Second):
		t.Fatal("execution did not complete")
	}
}

func TestDoExecTimeout(t *testing.T) {
	d := New(WithExecTimeout(10 * time.Millisecond))

	_, _, err := Do(context.Background(), d, "k", func(ctx context.Context) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return 0, nil
		}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForget(t *testing.T) {
	d := New()

	var calls atomic.Int64
	release := make(chan struct{})
	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = Do(context.Background(), d, "k", fn) //nolint:errcheck
	}()
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)

	// Forget 后同 key 的新调用触发第二次执行
	d.Forget("k")
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = Do(context.Background(), d, "k", fn) //nolint:errcheck
	}()
	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()
}

package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetryCount(t *testing.T) {
	var calls int
	errAlways := fmt.Errorf("always fails")

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++

		return 0, errAlways
	}, Config{MaxRetries: 2, BaseDelay: time.Millisecond})

	require.ErrorIs(t, err, errAlways)
	require.Equal(t, 3, calls)
}

func TestDoSuccessAfterFailure(t *testing.T) {
	var calls int

	res, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("attempt %d", calls)
		}

		return "ok", nil
	}, Config{MaxRetries: 5, BaseDelay: time.Millisecond})

	require.NoError(t, err)
	require.Equal(t, "ok", res)
	require.Equal(t, 3, calls)
}

func TestDoNonRetryable(t *testing.T) {
	var calls int
	errFatal := fmt.Errorf("fatal")

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++

		return 0, errFatal
	}, Config{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		RetryOn:    func(err error) bool { return false },
	})

	require.ErrorIs(t, err, errFatal)
	require.Equal(t, 1, calls)
}

func TestDoOnRetryHook(t *testing.T) {
	type call struct {
		attempt int
		delay   time.Duration
	}

	var hooks []call

	_, _ = Do(context.Background(), func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("nope")
	}, Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			hooks = append(hooks, call{attempt: attempt, delay: delay})
		},
	})

	require.Len(t, hooks, 3)
	for i, h := range hooks {
		require.Equal(t, i+1, h.attempt)
		// Jitter keeps the delay within 75-100% of the capped value.
		require.LessOrEqual(t, h.delay, 2*time.Millisecond)
		require.GreaterOrEqual(t, h.delay, time.Duration(float64(time.Millisecond)*jitterFloor))
	}
}

func TestDoContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("transient")
	}, Config{MaxRetries: 3, BaseDelay: time.Second})

	require.ErrorIs(t, err, context.Canceled)
}

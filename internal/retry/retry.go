package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	jitterFloor = 0.75
)

// Config controls Do. RetryOn decides whether an error is retryable (nil
// means every error is); OnRetry is an observation hook and has no effect on
// control flow.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	RetryOn    func(err error) bool
	OnRetry    func(attempt int, err error, delay time.Duration)
}

// Do runs op up to 1+MaxRetries times with exponential backoff. The delay
// before retry n is min(BaseDelay*2^n, MaxDelay) scaled by a uniform jitter
// in [0.75, 1.0]. A non-retryable error and the last error after the budget
// is spent are returned verbatim.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), cfg Config) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}

		if cfg.RetryOn != nil && !cfg.RetryOn(err) {
			return zero, err
		}

		if attempt >= cfg.MaxRetries {
			return zero, err
		}

		delay := cfg.BaseDelay << attempt
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		delay = time.Duration(float64(delay) * (jitterFloor + rand.Float64()*(1-jitterFloor)))

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}

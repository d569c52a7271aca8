package querycache

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/xkelxmc/eden-tanstack-query/edenquery"
)

// retrier runs an operation up to retries+1 times with exponential backoff.
type retrier struct {
	retries  int
	initial  time.Duration
	maxDelay time.Duration
	jitter   bool
	onRetry  func(attempt int, err error, delay time.Duration)
}

func (r retrier) do(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.retries+1; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt > r.retries {
			break
		}

		delay := r.delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func (r retrier) delay(attempt int) time.Duration {
	delay := time.Duration(float64(r.initial) * math.Pow(2, float64(attempt-1)))
	if r.maxDelay > 0 && delay > r.maxDelay {
		delay = r.maxDelay
	}
	if r.jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// retryable reports whether err may succeed on a later attempt.
// Navigation errors, skipped queries and cancellation are final.
func retryable(err error) bool {
	var pe *edenquery.PathError
	switch {
	case errors.As(err, &pe):
		return false
	case errors.Is(err, edenquery.ErrQuerySkipped):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

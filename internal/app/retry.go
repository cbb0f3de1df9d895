package app

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds retries of transient data-layer errors.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second}

// Do runs fn until it succeeds, fails with a non-transient error or the
// attempts are exhausted. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.DoIf(ctx, IsTransient, fn)
}

// DoIf is Do with the retry decision left to retryable.
func (p RetryPolicy) DoIf(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

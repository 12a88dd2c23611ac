package shared

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a rate-limited request is repeated.
type RetryPolicy struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Delay before the first retry, doubled on each subsequent one
	MaxDelay   time.Duration // Upper bound for any single delay
}

// DefaultRetryPolicy returns three retries starting at one second, capped at thirty.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// BackOff returns the policy's schedule: exponential without jitter, stopping after MaxRetries.
func (p RetryPolicy) BackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.Reset()

	return backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0)))
}

// retryAfter waits as long as the last [RateLimitError] asked, capped at max, instead of the
// scheduled delay.
type retryAfter struct {
	backoff.BackOff
	max  time.Duration
	last error
}

func (b *retryAfter) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}

	var rl *RateLimitError
	if errors.As(b.last, &rl) && rl.RetryAfter > 0 {
		next = rl.RetryAfter
		if b.max > 0 && next > b.max {
			next = b.max
		}
	}
	return next
}

// Retry calls fn until it succeeds, fails with an error other than [ErrRateLimited], or the
// policy's retries are spent. The last error is returned unchanged.
func Retry(ctx context.Context, p RetryPolicy, fn func() error) error {
	return RetryNotify(ctx, p, fn, nil)
}

// RetryNotify is [Retry] with notify called before each wait.
func RetryNotify(ctx context.Context, p RetryPolicy, fn func() error, notify func(err error, wait time.Duration)) error {
	b := &retryAfter{BackOff: p.BackOff(), max: p.MaxDelay}

	op := func() error {
		err := fn()
		b.last = err
		if err != nil && !errors.Is(err, ErrRateLimited) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

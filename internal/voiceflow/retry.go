package voiceflow

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy decides which failed calls are retried and how long to wait.
// Rate-limited calls back off exponentially (capped, optionally jittered) up
// to MaxAttempts total attempts. Network failures are retried NetworkRetries
// times after a fixed NetworkDelay. Every other failure is returned at once.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterPercent  uint64
	NetworkRetries int
	NetworkDelay   time.Duration

	// Retryable overrides the default predicate (rate limits and network
	// errors). Errors it rejects are never retried.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns the policy used when Config.Retry is nil.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		JitterPercent:  20,
		NetworkRetries: 1,
		NetworkDelay:   500 * time.Millisecond,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsRateLimited(err) || IsNetwork(err)
}

func (p RetryPolicy) exponential() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}
	return b
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget for the failure's class is spent. The last error is returned
// unwrapped. attempt is 1-based.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var (
		last        error
		attempt     int
		rateLimited int
		network     int
		other       int
	)

	exp := p.exponential()
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		switch {
		case IsRateLimited(last):
			rateLimited++
			if rateLimited >= max(p.MaxAttempts, 1) {
				return 0, true
			}
			d, stop := exp.Next()
			if hint := retryAfter(last); hint > d {
				d = hint
				if p.MaxDelay > 0 && d > p.MaxDelay {
					d = p.MaxDelay
				}
			}
			return d, stop
		case IsNetwork(last):
			network++
			if network > p.NetworkRetries {
				return 0, true
			}
			return p.NetworkDelay, false
		default:
			other++
			if other >= max(p.MaxAttempts, 1) {
				return 0, true
			}
			return exp.Next()
		}
	})

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}
		if ctx.Err() == nil && p.retryable(last) {
			return retry.RetryableError(last)
		}
		return last
	})
}

package classify

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy controls how rate-limited requests are repeated. MaxAttempts
// counts the first request; Sleep defaults to a context-aware timer.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is three attempts two seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Backoff returns a fresh delay schedule for one Classify call.
func (p RetryPolicy) Backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var base retry.Backoff
	if p.Delay > 0 {
		base = retry.NewConstant(p.Delay)
	} else {
		base = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	return retry.WithMaxRetries(uint64(attempts-1), base)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

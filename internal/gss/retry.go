package gss

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds retries of transient file upload failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		MaxElapsed:  2 * time.Minute,
	}
}

// backoff returns the wait before attempt n (1-based), with jitter in [d/2, d].
func (p RetryPolicy) backoff(n int) time.Duration {
	d := p.BaseDelay << (n - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(half+1)
}

// retry runs op until it succeeds, fails with a non-transient error, or the
// policy is exhausted. onRetry is called before each wait.
func retry(ctx context.Context, p RetryPolicy, onRetry func(attempt int, err error, wait time.Duration), op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	started := time.Now()

	var err error
	for n := 1; n <= attempts; n++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if n == attempts {
			break
		}

		wait := p.backoff(n)
		if p.MaxElapsed > 0 && time.Since(started)+wait > p.MaxElapsed {
			return fmt.Errorf("giving up after %d attempts in %s: %w", n, time.Since(started).Round(time.Millisecond), err)
		}
		if onRetry != nil {
			onRetry(n, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

package gss

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked", fmt.Errorf("s3: %w", ErrTransient), true},
		{"reset", fmt.Errorf("put: %w", syscall.ECONNRESET), true},
		{"deadline", context.DeadlineExceeded, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("no route")}, true},
		{"cancelled", context.Canceled, false},
		{"permission", errors.New("access denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls, retries := 0, 0
		err := retry(context.Background(), fastPolicy(5), func(int, error, time.Duration) { retries++ }, func(context.Context) error {
			calls++
			if calls < 3 {
				return ErrTransient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("retry() error = %v", err)
		}
		if calls != 3 || retries != 2 {
			t.Errorf("calls = %d, retries = %d; want 3, 2", calls, retries)
		}
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		calls := 0
		perm := errors.New("forbidden")
		err := retry(context.Background(), fastPolicy(5), nil, func(context.Context) error {
			calls++
			return perm
		})
		if !errors.Is(err, perm) || calls != 1 {
			t.Errorf("retry() = %v after %d calls", err, calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), fastPolicy(3), nil, func(context.Context) error {
			calls++
			return ErrTransient
		})
		if !errors.Is(err, ErrTransient) || calls != 3 {
			t.Errorf("retry() = %v after %d calls", err, calls)
		}
	})

	t.Run("cancellation stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		err := retry(ctx, p, nil, func(context.Context) error { return ErrTransient })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("retry() = %v, want context.Canceled", err)
		}
	})
}

func TestBackoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	for n := 1; n <= 10; n++ {
		d := p.backoff(n)
		want := min(100*time.Millisecond<<(n-1), time.Second)
		if d < want/2 || d > want {
			t.Errorf("backoff(%d) = %s, want within [%s, %s]", n, d, want/2, want)
		}
	}
}

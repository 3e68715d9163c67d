package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	base := NewBaseProvider("test", 3, time.Millisecond)

	attempts := 0
	err := base.Retry(context.Background(), func(error) bool { return true }, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	base := NewBaseProvider("test", 5, time.Millisecond)

	fatal := errors.New("bad request")
	attempts := 0
	err := base.Retry(context.Background(), func(error) bool { return false }, func() error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("Retry returned %v, want %v", err, fatal)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	base := NewBaseProvider("test", 3, time.Millisecond)

	transient := errors.New("still failing")
	attempts := 0
	err := base.Retry(context.Background(), func(error) bool { return true }, func() error {
		attempts++
		return transient
	})

	if !errors.Is(err, transient) {
		t.Fatalf("Retry returned %v, want %v", err, transient)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	base := NewBaseProvider("test", 10, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- base.Retry(ctx, func(error) bool { return true }, func() error {
			attempts++
			return errors.New("transient")
		})
	}()

	// Let the first attempt land, then cancel during the backoff wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Retry returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoffUsesCustomDelays(t *testing.T) {
	base := NewBaseProvider("test", 3, time.Hour)

	var delays []int
	attempts := 0
	err := base.RetryWithBackoff(context.Background(),
		func(error) bool { return true },
		func() error {
			attempts++
			return errors.New("transient")
		},
		func(attempt int) time.Duration {
			delays = append(delays, attempt)
			return time.Millisecond
		})

	if err == nil {
		t.Fatal("expected final error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	// Backoff runs between attempts, not after the last one.
	if len(delays) != 2 || delays[0] != 1 || delays[1] != 2 {
		t.Errorf("backoff attempts = %v, want [1 2]", delays)
	}
}

func TestRetryNilOperation(t *testing.T) {
	base := NewBaseProvider("test", 3, time.Millisecond)
	if err := base.Retry(context.Background(), nil, nil); err != nil {
		t.Errorf("nil op returned %v, want nil", err)
	}
}

func TestNewBaseProviderDefaults(t *testing.T) {
	base := NewBaseProvider("test", 0, 0)
	if base.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", base.maxRetries)
	}
	if base.retryDelay != time.Second {
		t.Errorf("retryDelay = %v, want 1s", base.retryDelay)
	}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_ClassifierRejects(t *testing.T) {
	attempts := 0
	quotaErr := errors.New("quota exceeded")
	classifier := func(err error) bool { return !errors.Is(err, quotaErr) }

	err := Do(context.Background(), fastConfig(3), classifier, func(ctx context.Context) error {
		attempts++
		return quotaErr
	})

	if !errors.Is(err, quotaErr) {
		t.Errorf("Do() returned error = %v, want %v", err, quotaErr)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_PermanentOverridesClassifier(t *testing.T) {
	attempts := 0
	cause := errors.New("bad request")
	alwaysRetry := func(error) bool { return true }

	err := Do(context.Background(), fastConfig(3), alwaysRetry, func(ctx context.Context) error {
		attempts++
		return Permanent(cause)
	})

	if !errors.Is(err, cause) {
		t.Errorf("Do() returned error = %v, want wrapped %v", err, cause)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_RetryableError(t *testing.T) {
	attempts := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), cfg, IsRetryable, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("Do() made %d attempts, want 3", attempts)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	attempts := 0
	tempErr := errors.New("temporary")

	err := Do(context.Background(), fastConfig(3), IsRetryable, func(ctx context.Context) error {
		attempts++
		return tempErr
	})

	if !errors.Is(err, tempErr) {
		t.Errorf("Do() returned error = %v, want wrapped %v", err, tempErr)
	}
	if attempts != 4 {
		t.Errorf("Do() made %d attempts, want 4", attempts)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: time.Second, Multiplier: 2.0}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, cfg, IsRetryable, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() returned error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_MaxBackoffCaps(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialBackoff: time.Hour, MaxBackoff: time.Millisecond, Multiplier: 2.0}
	var delays []time.Duration
	cfg.OnRetry = func(_ int, d time.Duration, _ error) { delays = append(delays, d) }

	Do(context.Background(), cfg, IsRetryable, func(ctx context.Context) error {
		return errors.New("temporary")
	})

	for _, d := range delays {
		if d > time.Millisecond {
			t.Errorf("delay %v exceeds MaxBackoff", d)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"permanent", Permanent(errors.New("bad")), false},
		{"wrapped permanent", fmt.Errorf("call: %w", Permanent(errors.New("bad"))), false},
		{"generic error", errors.New("generic"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}

func TestJitter_Bounds(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		j := jitter(d, 0.2)
		if j < -20*time.Millisecond || j > 20*time.Millisecond {
			t.Fatalf("jitter() = %v, outside +/-20ms", j)
		}
	}
	if jitter(d, 0) != 0 {
		t.Error("jitter() with zero fraction != 0")
	}
}

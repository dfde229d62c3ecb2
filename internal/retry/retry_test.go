package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestPolicy_SucceedsAfterRetries(t *testing.T) {
	p := NewPolicy(3, time.Millisecond)
	calls := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	p := NewPolicy(3, time.Millisecond)
	calls := 0
	var retried []int
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		retried = append(retried, attempt)
	}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want wrapped errBoom", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// no wait after the final attempt
	if len(retried) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(retried))
	}
}

func TestPolicy_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	p := NewPolicy(5, time.Millisecond)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	calls := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("error = %v, want permanent", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("non-retryable error should not be reported as exhausted")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicy_ContextCanceled(t *testing.T) {
	p := NewPolicy(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(ctx context.Context) error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPolicy_WaitScheduleMonotonicAndBounded(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"fixed", Policy{Delay: 5 * time.Second, MaxDelay: 30 * time.Second, Backoff: BackoffFixed}},
		{"exponential", Policy{Delay: 5 * time.Second, MaxDelay: 30 * time.Second, Backoff: BackoffExponential}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := time.Duration(0)
			for attempt := 1; attempt <= 20; attempt++ {
				w := tt.policy.WaitFor(attempt)
				if w < prev {
					t.Fatalf("attempt %d wait %v < previous %v", attempt, w, prev)
				}
				if w > tt.policy.MaxDelay {
					t.Fatalf("attempt %d wait %v exceeds max %v", attempt, w, tt.policy.MaxDelay)
				}
				prev = w
			}
		})
	}

	fixed := Policy{Delay: 5 * time.Second, Backoff: BackoffFixed}
	if fixed.WaitFor(1) != 5*time.Second || fixed.WaitFor(3) != 5*time.Second {
		t.Error("fixed backoff should keep the base delay")
	}
}

func TestPolicy_WaitHintRaisesWait(t *testing.T) {
	slow := errors.New("slow down")
	p := NewPolicy(3, time.Millisecond)
	p.WaitHint = func(err error) time.Duration {
		if errors.Is(err, slow) {
			return 40 * time.Millisecond
		}
		return 0
	}
	var waits []time.Duration
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		switch calls {
		case 1:
			return slow
		case 2:
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(waits) != 2 {
		t.Fatalf("waits = %v, want 2 entries", waits)
	}
	if waits[0] != 40*time.Millisecond {
		t.Errorf("hinted wait = %v, want 40ms", waits[0])
	}
	if waits[1] != time.Millisecond {
		t.Errorf("unhinted wait = %v, want the policy delay", waits[1])
	}
}

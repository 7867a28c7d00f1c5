package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/shortfire/internal/runner"
)

// TestRetryRespectsMaxAttempts verifies retry count is honored.
func TestRetryRespectsMaxAttempts(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 3}

	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		DelayFunc: func(attempt int, err error) time.Duration {
			return time.Duration(attempt) * time.Millisecond
		},
	}

	if err := runner.WithRetry(requester, policy).Do(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	// Succeeds on the 4th attempt.
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetryExceedsMaxAttempts(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100}

	policy := runner.RetryPolicy{
		MaxAttempts: 3,
		DelayFunc:   func(attempt int, err error) time.Duration { return time.Millisecond },
	}

	if err := runner.WithRetry(requester, policy).Do(context.Background()); err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (max), got %d", attempts)
	}
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100}
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		ShouldRetry: func(err error) bool { return false },
		DelayFunc:   func(int, error) time.Duration { return 0 },
	}
	if err := runner.WithRetry(requester, policy).Do(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100}
	policy := runner.RetryPolicy{MaxAttempts: 5, Delay: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := runner.WithRetry(requester, policy).Do(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestFailuresLoggedThroughStream(t *testing.T) {
	logger := &testLogger{}
	res := runner.Stream{
		Name:        "failing",
		Stages:      []runner.Stage{{Duration: 100 * time.Millisecond, StartRate: 50, EndRate: 50}},
		MaxInFlight: 10,
		Requester: runner.WithLogging(runner.RequesterFunc(func(context.Context) error {
			return errors.New("status 500")
		}), logger),
	}.Run(context.Background())

	if res.Issued == 0 {
		t.Fatalf("expected ticks to be issued")
	}
	if res.Failed != res.Issued {
		t.Errorf("expected every issued request to fail, got %+v", res)
	}
	if got := logger.count.Load(); got != res.Issued {
		t.Errorf("expected %d logged failures, got %d", res.Issued, got)
	}
}

type retryableRequester struct {
	attempts  *int64
	failUntil int64
}

func (r *retryableRequester) Do(ctx context.Context) error {
	attempt := atomic.AddInt64(r.attempts, 1)
	if attempt <= r.failUntil {
		return errors.New("transient failure")
	}
	return nil
}

type testLogger struct {
	count atomic.Int64
}

func (l *testLogger) LogFailure(err error) {
	l.count.Add(1)
}

func TestJitteredBackoff(t *testing.T) {
	plain := runner.JitteredBackoff(100*time.Millisecond, time.Second, nil)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := plain(i+1, nil); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}

	low := runner.JitteredBackoff(100*time.Millisecond, time.Second, func() float64 { return 0 })
	if got := low(1, nil); got != 50*time.Millisecond {
		t.Errorf("expected half delay with zero jitter, got %s", got)
	}
	high := runner.JitteredBackoff(100*time.Millisecond, time.Second, func() float64 { return 0.99 })
	if got := high(1, nil); got < 148*time.Millisecond || got >= 150*time.Millisecond {
		t.Errorf("expected just under 1.5x delay, got %s", got)
	}
	if got := runner.JitteredBackoff(0, time.Second, nil)(3, nil); got != 0 {
		t.Errorf("expected zero delay for zero base, got %s", got)
	}
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuard_RetriesNetworkErrors(t *testing.T) {
	g := NewGuard(NewCircuitBreaker("guard-test", 5, time.Second), fastRetry(3), time.Second)

	attempts := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestGuard_AppliesTimeout(t *testing.T) {
	g := NewGuard(nil, fastRetry(1), 20*time.Millisecond)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestGuard_OpensCircuit(t *testing.T) {
	g := NewGuard(NewCircuitBreaker("guard-open", 2, time.Minute), fastRetry(1), time.Second)
	fail := func(ctx context.Context) error { return errors.New("500 internal error") }

	_ = g.Do(context.Background(), fail)
	_ = g.Do(context.Background(), fail)

	err := g.Do(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if g.Breaker().GetState() != StateOpen {
		t.Error("Expected breaker to be open")
	}
}

func TestGuard_DoesNotRetryHungAttempt(t *testing.T) {
	g := NewGuard(nil, fastRetry(3), 30*time.Millisecond)

	calls := 0
	start := time.Now()
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a hung attempt to run once, ran %d times", calls)
	}
	if elapsed := time.Since(start); elapsed > g.Budget() {
		t.Errorf("Do took %v, longer than its budget %v", elapsed, g.Budget())
	}
}

func TestGuard_Budget(t *testing.T) {
	retry := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}
	g := NewGuard(nil, retry, 10*time.Second)

	// 3 attempts of 10s plus 100ms and 200ms of backoff
	if got, want := g.Budget(), 30*time.Second+300*time.Millisecond; got != want {
		t.Errorf("Expected budget %v, got %v", want, got)
	}

	if NewGuard(nil, retry, 0).Budget() != 0 {
		t.Error("Expected an unbounded guard to report a zero budget")
	}
	var nilGuard *Guard
	if nilGuard.Timeout() != 0 {
		t.Error("Expected a nil guard to report no timeout")
	}
}

package resilience

import (
	"context"
	"errors"
	"time"
)

// Guard wraps provider calls with a per-attempt timeout, retries for
// transient network errors and a circuit breaker.
type Guard struct {
	breaker *CircuitBreaker
	retry   *RetryConfig
	timeout time.Duration
}

// NewGuard creates a guard. A nil breaker disables circuit breaking and a
// zero timeout leaves the caller's deadline in charge.
func NewGuard(breaker *CircuitBreaker, retry *RetryConfig, timeout time.Duration) *Guard {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &Guard{breaker: breaker, retry: retry, timeout: timeout}
}

// Do runs fn under the guard. An attempt that runs into the per-attempt
// timeout is not retried: the provider is hung, not flaky.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func(ctx context.Context) error {
		if g.timeout <= 0 {
			return fn(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	}

	run := func() error {
		return Retry(ctx, attempt, g.retry, isRetryableAttempt)
	}
	if g.breaker == nil {
		return run()
	}
	return g.breaker.Call(run)
}

func isRetryableAttempt(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsRetryableNetworkError(err)
}

// Timeout returns the per-attempt timeout, zero when unbounded
func (g *Guard) Timeout() time.Duration {
	if g == nil {
		return 0
	}
	return g.timeout
}

// Budget returns the longest Do can take: every attempt running up to the
// timeout plus the backoff between attempts. Zero when unbounded.
func (g *Guard) Budget() time.Duration {
	if g == nil || g.timeout <= 0 {
		return 0
	}
	attempts := g.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	total := time.Duration(attempts) * g.timeout
	for i := 0; i < attempts-1; i++ {
		sleep := CalculateBackoff(i, g.retry.InitialBackoff, g.retry.MaxBackoff, g.retry.BackoffMultiplier)
		if g.retry.Jitter {
			sleep += sleep / 4
			if g.retry.MaxBackoff > 0 && sleep > g.retry.MaxBackoff {
				sleep = g.retry.MaxBackoff
			}
		}
		total += sleep
	}
	return total
}

// Breaker returns the guard's circuit breaker, which may be nil
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

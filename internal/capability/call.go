package capability

import (
	"context"
	"errors"

	"github.com/lexiqai/assist-gateway/internal/observability"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

// Call runs one provider operation under guard, records request metrics and
// classifies any failure into an *Error for capability name. failure is the
// summary used when the provider itself reported the error.
func Call(ctx context.Context, name, failure string, guard *resilience.Guard, fn func(ctx context.Context) error) error {
	m := observability.NewRequestMetrics(name)

	var err error
	if guard != nil {
		err = guard.Do(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err == nil {
		m.RecordEnd(true)
		return nil
	}

	err = classify(name, failure, err)
	m.RecordError(KindOf(err).String())
	m.RecordEnd(false)
	observability.LoggerFromContext(ctx).Error().
		Err(err).
		Str("capability", name).
		Str("kind", KindOf(err).String()).
		Msg("Provider call failed")
	return err
}

func classify(name, failure string, err error) error {
	var capErr *Error
	if errors.As(err, &capErr) {
		return err
	}
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return Unavailable(name, "provider temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded), resilience.IsRetryableNetworkError(err):
		return Unavailable(name, failure, err)
	}
	return ProviderFailure(name, failure, err)
}

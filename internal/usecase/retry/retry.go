// Package retry runs a model call plus its parser a bounded number of times.
package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// Policy bounds one retried operation.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Once is the policy used by decomposition and synthesis: one try and one retry.
var Once = Policy{Attempts: 2}

func (p Policy) attempts() uint {
	// retry-go treats 0 as "forever"
	if p.Attempts < 1 {
		return 1
	}
	return uint(p.Attempts)
}

// Do calls fn until it succeeds or the policy runs out and returns the last error.
// Budget exhaustion, invalid input and a cancelled context stop early.
func Do[T any](
	ctx context.Context, p Policy, logger *zap.Logger, op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	return retrygo.DoWithData(
		func() (T, error) { return fn(ctx) },
		retrygo.Context(ctx),
		retrygo.Attempts(p.attempts()),
		retrygo.Delay(p.Delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(Retryable),
		retrygo.OnRetry(func(n uint, err error) {
			logger.Warn("Retrying",
				zap.String("op", op),
				zap.Uint("failed_attempt", n+1),
				zap.Error(err),
			)
		}),
	)
}

// Retryable reports whether another attempt may succeed.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrBudgetExceeded),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

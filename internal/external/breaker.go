package external

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"roomdigest/internal/types"
)

// BreakerProvider wraps an EmailProvider with a circuit breaker so a
// provider-side outage stops the worker from hammering SES while it is down.
//
// Per-recipient rejections (blocked or suppressed addresses) count as
// successes for breaker accounting: they say nothing about provider health
// and must not open the circuit for everyone else.
type BreakerProvider struct {
	provider EmailProvider
	breaker  *gobreaker.CircuitBreaker[string]
}

// NewBreakerProvider wraps provider with a named circuit breaker.
func NewBreakerProvider(name string, provider EmailProvider) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeEmailBlocked {
				return true
			}
			return false
		},
	})

	return &BreakerProvider{
		provider: provider,
		breaker:  cb,
	}
}

// Send forwards to the wrapped provider through the breaker. When the circuit
// is open the call fails fast with an upstream-unavailable error and the
// provider is never invoked.
func (b *BreakerProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	msgID, err := b.breaker.Execute(func() (string, error) {
		return b.provider.Send(ctx, input)
	})
	if err == nil {
		return msgID, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"email provider circuit open",
			err,
		)
	}
	return "", err
}

var _ EmailProvider = (*BreakerProvider)(nil)

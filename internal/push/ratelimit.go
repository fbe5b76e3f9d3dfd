package push

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles an underlying channel so a burst of notifications
// cannot exceed the provider's send quota.
type RateLimited struct {
	next    Channel
	limiter *rate.Limiter
}

func NewRateLimited(next Channel, limit rate.Limit, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Send(ctx context.Context, alert Alert) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for push rate limit: %w", err)
	}
	return r.next.Send(ctx, alert)
}

// Package push delivers notification alerts to users outside the app.
package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/HammerMeetNail/penpals/internal/config"
)

// Alert is one rendered notification addressed to a user's devices.
type Alert struct {
	UserID      string            `json:"user_id"`
	DeviceToken string            `json:"device_token,omitempty"`
	Email       string            `json:"email,omitempty"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// Channel sends alerts. Implementations must be safe for concurrent use.
type Channel interface {
	Send(ctx context.Context, alert Alert) error
}

// New builds the channel selected by cfg.Provider, wrapped in a rate limiter
// when a positive rate is configured.
func New(cfg config.PushConfig, rdb *redis.Client) (Channel, error) {
	var ch Channel
	switch cfg.Provider {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis push provider requires a redis client")
		}
		ch = NewRedisChannel(rdb, cfg.QueueKey)
	case "email":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("email push provider requires RESEND_API_KEY")
		}
		ch = NewEmailChannel(cfg.ResendAPIKey, cfg.FromAddress)
	case "console", "":
		ch = NewConsoleChannel()
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Provider)
	}

	if cfg.RatePerSec > 0 {
		ch = NewRateLimited(ch, rate.Limit(cfg.RatePerSec), cfg.Burst)
	}
	return ch, nil
}

package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisChannel queues alerts for the push worker, which owns provider
// credentials and retries.
type RedisChannel struct {
	client listPusher
	key    string
}

func NewRedisChannel(client listPusher, key string) *RedisChannel {
	if key == "" {
		key = "push:alerts"
	}
	return &RedisChannel{client: client, key: key}
}

func (c *RedisChannel) Send(ctx context.Context, alert Alert) error {
	if alert.DeviceToken == "" {
		return nil
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}
	if err := c.client.LPush(ctx, c.key, payload).Err(); err != nil {
		return fmt.Errorf("queueing alert: %w", err)
	}
	return nil
}

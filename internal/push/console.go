package push

import (
	"context"

	"github.com/HammerMeetNail/penpals/internal/logging"
)

// ConsoleChannel logs alerts instead of sending them (for development).
type ConsoleChannel struct {
	logger *logging.Logger
}

func NewConsoleChannel() *ConsoleChannel {
	return &ConsoleChannel{logger: logging.Default.WithField("component", "push")}
}

func (c *ConsoleChannel) Send(ctx context.Context, alert Alert) error {
	c.logger.Info("=== PUSH (Console Provider) ===", map[string]interface{}{
		"user_id": alert.UserID,
		"title":   alert.Title,
		"body":    alert.Body,
		"data":    alert.Data,
	})
	return nil
}

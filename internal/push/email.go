package push

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/penpals/internal/logging"
)

type emailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailChannel mails alerts through Resend to users with an address on file.
type EmailChannel struct {
	emails emailSender
	from   string
}

func NewEmailChannel(apiKey, from string) *EmailChannel {
	return &EmailChannel{emails: resend.NewClient(apiKey).Emails, from: from}
}

func (c *EmailChannel) Send(ctx context.Context, alert Alert) error {
	if alert.Email == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{alert.Email},
		Subject: alert.Title,
		Html:    fmt.Sprintf("<p>%s</p>", html.EscapeString(alert.Body)),
		Text:    alert.Body,
	}
	if _, err := c.emails.Send(params); err != nil {
		return fmt.Errorf("sending alert via Resend: %w", err)
	}

	logging.Debug("Alert sent via Resend", map[string]interface{}{"user_id": alert.UserID, "type": alert.Data["type"]})
	return nil
}

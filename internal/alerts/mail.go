package alerts

import (
	"context"
	"fmt"

	mailgun "github.com/mailgun/mailgun-go/v3"

	"github.com/f451labs/telemetry/internal/config"
)

// mailer sends one plain-text email to the configured recipients.
type mailer func(ctx context.Context, subject, body string) error

func newMailgun(cfg config.MailgunConfig) mailer {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.Key())
	return func(ctx context.Context, subject, body string) error {
		msg := mg.NewMessage(cfg.Sender, subject, body, cfg.Recipients...)
		resp, id, err := mg.Send(ctx, msg)
		if err != nil {
			return fmt.Errorf("mailgun send: %w", err)
		}
		if id == "" {
			return fmt.Errorf("mailgun send: no message id: %s", resp)
		}
		return nil
	}
}

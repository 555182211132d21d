package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/edulink/lms-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages. Delivery is best-effort: callers never roll back
// domain writes when sending fails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects the Sendgrid transport when mail is enabled and configured,
// otherwise falls back to logging messages to the console.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Enabled && cfg.SendgridAPIKey != "" {
		return NewSendgrid(cfg)
	}
	return NewConsole(logger)
}

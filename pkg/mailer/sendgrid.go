package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/edulink/lms-api/pkg/config"
)

// Sendgrid delivers mail through the Sendgrid v3 API.
type Sendgrid struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendgrid builds the Sendgrid mailer from the mail config.
func NewSendgrid(cfg config.MailConfig) *Sendgrid {
	return &Sendgrid{
		client: sendgrid.NewSendClient(cfg.SendgridAPIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

// Send delivers a single message.
func (s *Sendgrid) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.ToEmail)
	email := sgmail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Console logs messages instead of delivering them. Used in development and
// whenever no mail provider is configured.
type Console struct {
	logger *zap.Logger
}

// NewConsole builds the console mailer.
func NewConsole(logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger}
}

// Send writes the message to the log.
func (c *Console) Send(_ context.Context, msg Message) error {
	c.logger.Info("email (console)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

package email

import (
	"context"
	"log/slog"
)

// DevSender logs emails instead of sending them, for local development and
// tests.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a log-only sender.
func NewDevSender(logger *slog.Logger) *DevSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevSender{logger: logger}
}

func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	d.logger.Info("email (dev sender, not delivered)",
		slog.String("to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
		slog.Int("body_bytes", len(params.BodyHTML)))
	return nil
}

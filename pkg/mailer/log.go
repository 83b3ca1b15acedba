package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer records messages in the application log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer for development environments.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the envelope and text body.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email",
		zap.String("to", msg.To.Address),
		zap.String("subject", msg.Subject),
		zap.String("category", msg.Category),
		zap.String("text", msg.Text),
	)
	return nil
}

// Package notifier holds the outbound channel senders. The real transports
// live with an external provider; these implementations log the payload and
// report success so the dispatch pipeline can be exercised end to end.
package notifier

import (
	"context"

	"go.uber.org/zap"
)

// EmailSender delivers a rendered message over email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a rendered message over SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogEmailSender writes outbound email to the log instead of a provider.
type LogEmailSender struct {
	logger *zap.Logger
}

// NewLogEmailSender constructs the stub sender.
func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmailSender{logger: logger}
}

// SendEmail implements EmailSender.
func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info("email send",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

// LogSMSSender writes outbound SMS to the log instead of a provider.
type LogSMSSender struct {
	logger *zap.Logger
}

// NewLogSMSSender constructs the stub sender.
func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSMSSender{logger: logger}
}

// SendSMS implements SMSSender.
func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms send",
		zap.String("to", to),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

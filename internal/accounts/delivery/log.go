package delivery

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of sending them. It is only
// wired in when ENV=dev.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendEmail(ctx context.Context, to, subject, text string) error {
	s.Logger.InfoContext(ctx, "dev email", "to", to, "subject", subject, "text", text)
	return nil
}

func (s LogSender) SendSMS(ctx context.Context, to, body string) error {
	s.Logger.InfoContext(ctx, "dev sms", "to", to, "body", body)
	return nil
}

package notify

import (
	"context"
	"log/slog"
)

var _ Sender = (*LogSender)(nil)

// LogSender writes notifications to the application log. It is the default
// channel when no external delivery is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		log: logger.With(slog.String("module", "notify_log")),
	}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	attrs := []any{
		slog.String("kind", string(n.Kind)),
		slog.String("user_id", n.Recipient.UserID),
		slog.String("email", n.Recipient.Email),
	}

	for k, v := range n.Data {
		attrs = append(attrs, slog.String(k, v))
	}

	s.log.Info("Notification", attrs...)

	return nil
}

func (s *LogSender) Close() error {
	return nil
}

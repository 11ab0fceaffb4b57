package mailx

import (
	"context"
	"log/slog"
)

// ConsoleSender logs messages instead of delivering them. Used in dev so the
// verification and reset links show up in the service log.
type ConsoleSender struct {
	Logger *slog.Logger
}

func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("email (console transport)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}

// Package mailer delivers transactional email: login challenges and password
// reset links.
package mailer

import (
	"context"
	"log/slog"
	"net/mail"
)

// Message is a single email with plain text and HTML alternatives.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender identifies the From header of outgoing mail.
type Sender struct {
	Name    string
	Address string
}

func (s Sender) String() string {
	return (&mail.Address{Name: s.Name, Address: s.Address}).String()
}

// LogMailer writes messages to the logger instead of sending them. Intended for
// local development; refused in production by config validation.
type LogMailer struct {
	logger *slog.Logger
	from   Sender
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(from Sender, logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger, from: from}
}

// Send logs the envelope of msg. Bodies carry one-time codes and reset links
// and are never logged.
func (l *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info("email not sent (log driver)",
		slog.String("from", l.from.String()),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

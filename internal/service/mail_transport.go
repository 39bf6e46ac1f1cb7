package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// MailTransport delivers one rendered message to one recipient.
type MailTransport interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// LogMailTransport logs messages instead of delivering them. Used when no
// mail provider is configured.
type LogMailTransport struct {
	logger zerolog.Logger
}

// NewLogMailTransport constructs a logging transport.
func NewLogMailTransport(logger zerolog.Logger) *LogMailTransport {
	return &LogMailTransport{logger: logger.With().Str("component", "mail_log").Logger()}
}

// Send logs the message and reports success.
func (l *LogMailTransport) Send(ctx context.Context, to, subject, text, html string) error {
	l.logger.Info().
		Str("to", maskEmailAddress(to)).
		Str("subject", subject).
		Int("text_bytes", len(text)).
		Int("html_bytes", len(html)).
		Msg("alert email delivered to log")
	return nil
}

// maskEmailAddress keeps the first and last character of the local part.
func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}

// Package mailer delivers alert emails through SendGrid.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// ErrMissingAPIKey is returned when the transport is built without credentials.
var ErrMissingAPIKey = errors.New("sendgrid api key is required")

// Config holds SendGrid credentials and the sender identity.
type Config struct {
	APIKey    string
	FromName  string
	FromEmail string
	Host      string
}

// SendgridTransport sends one message per call through the v3 mail API.
type SendgridTransport struct {
	key    string
	host   string
	from   *sgmail.Email
	logger zerolog.Logger
}

// NewSendgridTransport constructs the transport.
func NewSendgridTransport(cfg Config, logger zerolog.Logger) (*SendgridTransport, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("sendgrid sender address is required")
	}

	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	return &SendgridTransport{
		key:    cfg.APIKey,
		host:   host,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger.With().Str("component", "sendgrid").Logger(),
	}, nil
}

func (t *SendgridTransport) prepare(to, subject, text, html string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", to))

	m := sgmail.NewV3Mail()
	m.SetFrom(t.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", text),
		sgmail.NewContent("text/html", html),
	)
	return m
}

// Send delivers the message. A non-2xx answer is returned as an error.
func (t *SendgridTransport) Send(ctx context.Context, to, subject, text, html string) error {
	req := sendgrid.GetRequest(t.key, endpoint, t.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(t.prepare(to, subject, text, html))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message with status %d: %s", res.StatusCode, res.Body)
	}

	t.logger.Debug().Int("status", res.StatusCode).Msg("email accepted by sendgrid")
	return nil
}

package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 15 * time.Second

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string //nolint:gosec // relay credential
	// TLSPolicy is "mandatory", "opportunistic" or "none". Ignored on port 465.
	TLSPolicy string
	// Timeout bounds dialing and each SMTP command. Defaults to 15s.
	Timeout time.Duration
	From    Sender
}

// SMTPMailer sends mail through an SMTP relay. Port 465 uses implicit TLS,
// other ports follow the configured STARTTLS policy.
type SMTPMailer struct {
	cfg     SMTPConfig
	options []mail.Option
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if err := mail.NewMsg().FromFormat(cfg.From.Name, cfg.From.Address); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}

	options := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}),
	}
	if cfg.Port == 465 {
		options = append(options, mail.WithSSL())
	} else {
		policy, err := tlsPolicy(cfg.TLSPolicy)
		if err != nil {
			return nil, err
		}
		options = append(options, mail.WithTLSPolicy(policy))
	}
	if cfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	// Surface option errors (bad port, bad policy) at startup rather than on first send.
	if _, err := mail.NewClient(cfg.Host, append(options, mail.WithTimeout(cfg.Timeout))...); err != nil {
		return nil, fmt.Errorf("invalid smtp settings: %w", err)
	}
	return &SMTPMailer{cfg: cfg, options: slices.Clip(options)}, nil
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch name {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("unsupported smtp tls policy %q", name)
	}
}

// Send delivers msg over a fresh connection. The exchange is bounded by the
// configured timeout or the ctx deadline, whichever is sooner.
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	m, err := newMessage(s.cfg.From, msg)
	if err != nil {
		return err
	}

	timeout := s.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		timeout = min(timeout, remaining)
	}

	client, err := mail.NewClient(s.cfg.Host, append(s.options, mail.WithTimeout(timeout))...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// newMessage renders msg as a multipart/alternative message when it carries
// an HTML body, plain text otherwise.
func newMessage(from Sender, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(from.Name, from.Address); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}
	return m, nil
}

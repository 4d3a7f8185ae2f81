// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package notify delivers password reset tokens to account holders.
// The SMTP mailer is the production implementation of auth.Notifier;
// reset tokens leave the system only through this channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/samber/oops"
)

// sendFunc matches smtp.SendMail. Injectable for testing.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailerConfig holds SMTP delivery settings.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the public address of the application, used to build
	// reset links, e.g. "https://gatehouse.example.com".
	BaseURL string
}

// Mailer sends password reset emails over SMTP.
type Mailer struct {
	cfg    MailerConfig
	send   sendFunc
	logger *slog.Logger
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithMailerLogger sets the logger for the mailer.
func WithMailerLogger(logger *slog.Logger) MailerOption {
	return func(m *Mailer) {
		m.logger = logger
	}
}

// withSendFunc overrides the SMTP send function. Test hook.
func withSendFunc(send sendFunc) MailerOption {
	return func(m *Mailer) {
		m.send = send
	}
}

// NewMailer creates a Mailer from config.
func NewMailer(cfg MailerConfig, opts ...MailerOption) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("smtp port is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("from address is required")
	}
	if cfg.BaseURL == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("base URL is required")
	}

	m := &Mailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SendPasswordReset emails a reset link containing the plaintext token.
// The token appears nowhere else; recipients prove control of the
// mailbox by presenting it.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("recipient", email).Wrap(err)
	}

	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)
	msg := m.buildMessage(email, "Password reset request",
		"A password reset was requested for your account.\r\n\r\n"+
			"To choose a new password, open the link below within one hour:\r\n\r\n"+
			link+"\r\n\r\n"+
			"If you did not request this, you can ignore this message.\r\n")

	var a smtp.Auth
	if m.cfg.Username != "" {
		a = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, a, m.cfg.From, []string{email}, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("recipient", email).Wrap(err)
	}

	m.logger.InfoContext(ctx, "password reset email sent", "recipient", email)
	return nil
}

func (m *Mailer) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

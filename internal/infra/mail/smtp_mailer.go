// Package mail provides the outbound mail implementation of the domain Mailer.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"passport/config"
	"passport/internal/domain/service"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

const resetSubject = "Password Reset"

// smtpMailer delivers mail through an SMTP relay using gomail.
type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *slog.Logger
}

// logMailer is used when no SMTP relay is configured. It logs the reset
// link instead of sending it, which keeps local development workable.
type logMailer struct {
	logger *slog.Logger
}

// NewMailer is the constructor for the Mailer service. It picks the SMTP
// implementation when the relay is configured and falls back to logging
// otherwise.
func NewMailer(cfg *config.Config, logger *slog.Logger) service.Mailer {
	if cfg.SMTP == nil || cfg.SMTP.Host == "" {
		logger.Warn("SMTP is not configured, reset mails will only be logged")

		return &logMailer{logger: logger}
	}

	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
		from:   cfg.SMTP.From,
		logger: logger,
	}
}

// SendPasswordReset delivers a password reset link to the given address.
func (m *smtpMailer) SendPasswordReset(ctx context.Context, to string, link string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "context cancelled before sending mail")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", resetSubject)
	msg.SetBody("text/html", fmt.Sprintf(
		`<p>Click <a href="%s">here</a> to reset your password.</p>`,
		link,
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "failed to send reset mail")
	}

	m.logger.Info("Sent password reset mail", slog.String("to", to))

	return nil
}

// SendPasswordReset logs the reset link instead of delivering it.
func (m *logMailer) SendPasswordReset(_ context.Context, to string, link string) error {
	m.logger.Info("Simulating password reset mail",
		slog.String("to", to),
		slog.String("link", link),
	)

	return nil
}

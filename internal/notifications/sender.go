package notifications

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/anshgupta/storekart-backend/pkg/config"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
)

// EmailSender delivers a single email. Implementations must be safe for
// concurrent use.
type EmailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// SMTPSender delivers mail over plain SMTP with AUTH PLAIN.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender builds a sender from the SMTP config block.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "smtp host is required")
	}
	if cfg.From == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "smtp from address is required")
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}, nil
}

func (s *SMTPSender) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	body := htmlBody
	contentType := "text/html; charset=UTF-8"
	if body == "" {
		body = textBody
		contentType = "text/plain; charset=UTF-8"
	}

	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: " + contentType + "\r\n" +
			"\r\n" +
			body,
	)

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

package notifications

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/angelmondragon/payflow-backend/pkg/config"
)

// Mailer delivers a single transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpMailer struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPMailer returns a gomail-backed mailer, or nil when SMTP is not configured.
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		return nil
	}
	return &smtpMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", renderBody(subject, body))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func renderBody(title, message string) string {
	return fmt.Sprintf("<h2>%s</h2>\n<p>%s</p>", html.EscapeString(title), html.EscapeString(message))
}

package infra

import (
	"fmt"
	"net/smtp"

	"dutyfreepos/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for the terminal's alert emails.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	to       string
}

// NewMailer returns nil when SMTP is not configured; callers treat a nil
// Mailer as "alerts disabled".
func NewMailer(cfg *config.Config) *Mailer {
	if !cfg.SMTPEnabled() {
		return nil
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       cfg.AlertEmail,
	}
}

// SendAlert mails a plain-text alert to the configured supervisor address.
func (m *Mailer) SendAlert(subject, body string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{m.to}
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send alert: %w", err)
	}
	return nil
}

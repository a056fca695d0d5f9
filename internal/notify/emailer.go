package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Emailer delivers a single email message.
type Emailer interface {
	Send(to, subject, body string) error
}

// SMTPEmailer delivers mail through an SMTP relay.
type SMTPEmailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   zerolog.Logger
}

// NewSMTPEmailer creates an SMTP-backed emailer. Empty username skips
// authentication (local relay).
func NewSMTPEmailer(host string, port int, username, password, from string, logger zerolog.Logger) *SMTPEmailer {
	return &SMTPEmailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger.With().Str("component", "emailer").Logger(),
	}
}

var _ Emailer = (*SMTPEmailer)(nil)

// Send delivers a plain-text email.
func (e *SMTPEmailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	e.logger.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

package email

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// Sender delivers verification codes. Delivery is synchronous: the caller
// rolls back the pending session when it fails.
type Sender interface {
	SendCode(recipient, code string) error
}

// SMTPSender delivers codes over plain SMTP with AUTH.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender creates a sender for the given SMTP endpoint.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

// SendCode emails a verification code to the recipient.
func (s *SMTPSender) SendCode(recipient, code string) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your verification code\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n"+
			"Your verification code is %s.\r\nIt is valid for 15 minutes.\r\n",
		s.from, recipient, code,
	)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{recipient}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// LogSender writes codes to the log instead of delivering them. Used in
// development and tests when SMTP is disabled. Codes are not logged.
type LogSender struct{}

// SendCode logs that a code would have been delivered.
func (LogSender) SendCode(recipient, code string) error {
	log.Info().Str("recipient", recipient).Msg("verification code issued (SMTP disabled)")
	return nil
}

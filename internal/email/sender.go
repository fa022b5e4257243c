package email

import (
	"bytes"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPConfig is the relay the notifications go through.
type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type SMTPSender struct {
	host string
	port string
	from string
	auth smtp.Auth // nil for local dev (MailHog)
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{host: cfg.Host, port: cfg.Port, from: cfg.From}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	msg := buildRFC822(s.from, to, subject, htmlBody)
	if err := smtp.SendMail(addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildRFC822(from, to, subject, html string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "\r\n%s\r\n", html)
	return buf.Bytes()
}

// LogSender only logs the mail. Useful for dev without SMTP.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(to, subject, htmlBody string) error {
	logger := s.Log
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("bytes", len(htmlBody)),
	)
	return nil
}

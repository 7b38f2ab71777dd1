// Package notify delivers decision messages to applicants. The worker
// picks a sink at startup: SMTP in production, the log sink everywhere
// else.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sink sends one message to one recipient.
type Sink interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSink writes would-be mails to the log. Useful in development and
// as a fallback when SMTP is not configured.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "Notification (log sink)",
		"to", to,
		"subject", subject,
		"body_length", len(body))
	return nil
}

// SMTPSink sends plain-text mail through a relay.
type SMTPSink struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func NewSMTPSink(addr, from, username, password string) *SMTPSink {
	s := &SMTPSink{Addr: addr, From: from}
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		s.Auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSink) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.From, to, subject, body)
	if err := smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	slog.InfoContext(ctx, "Notification sent", "to", to, "subject", subject)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

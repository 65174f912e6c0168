// Package mail sends the account e-mails (create-account and reset-password
// links). Delivery is best effort: callers log failures and move on.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NewSender returns an SMTPSender, or a LogSender when no SMTP host is configured.
func NewSender(cfg *config.Config, logger logging.Logger) Sender {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}

// sendMail is a seam for tests.
var sendMail = smtp.SendMail

type SMTPSender struct {
	addr string
	host string
	user string
	pass string
	from string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host: cfg.SMTPHost,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPassword,
		from: cfg.MailFrom,
	}
}

// Send delivers the message. smtp.SendMail upgrades to STARTTLS when the
// server offers it. The call is abandoned (not interrupted) when ctx ends.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	msg, err := buildMessage(s.from, to, subject, html)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- sendMail(s.addr, auth, s.from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errHeaderInjection = errors.New("mail header contains a line break")

func buildMessage(from, to, subject, html string) ([]byte, error) {
	for _, h := range []string{from, to, subject} {
		if strings.ContainsAny(h, "\r\n") {
			return nil, errHeaderInjection
		}
	}

	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.Bytes(), nil
}

// LogSender writes messages to the log instead of sending them. It is meant
// for development, where the links can be copied from the output at debug
// level.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mail")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, html string) error {
	s.logger.Info(ctx, "mail not sent, no SMTP host configured", "to", to, "subject", subject)
	// the body carries a live password token
	s.logger.Debug(ctx, "unsent mail body", "to", to, "body", html)
	return nil
}

package mail

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smtpConfig() *config.Config {
	var c config.Config
	c.LoadDefaults()
	c.SMTPHost = "smtp.example.org"
	c.SMTPPort = 2525
	c.SMTPUser = "mailer"
	c.SMTPPassword = "pw"
	return &c
}

func TestNewSender_PicksBackend(t *testing.T) {
	var c config.Config
	c.LoadDefaults()
	assert.IsType(t, &LogSender{}, NewSender(&c, logging.Nop()))
	assert.IsType(t, &SMTPSender{}, NewSender(smtpConfig(), logging.Nop()))
}

func TestSMTPSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	orig := sendMail
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}
	defer func() { sendMail = orig }()

	s := NewSMTPSender(smtpConfig())
	err := s.Send(context.Background(), "bob@example.com", "Création de compte", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.org:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "no-reply@ulpt.local", gotFrom)
	assert.Equal(t, []string{"bob@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: bob@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>"))
}

func TestSMTPSender_NoAuthWithoutUser(t *testing.T) {
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	orig := sendMail
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAuth = a
		return nil
	}
	defer func() { sendMail = orig }()

	c := smtpConfig()
	c.SMTPUser = ""
	require.NoError(t, NewSMTPSender(c).Send(context.Background(), "bob@example.com", "s", "b"))
	assert.Nil(t, gotAuth)
}

func TestSMTPSender_Errors(t *testing.T) {
	orig := sendMail
	defer func() { sendMail = orig }()

	sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	err := NewSMTPSender(smtpConfig()).Send(context.Background(), "bob@example.com", "s", "b")
	assert.ErrorContains(t, err, "smtp send: 421 busy")

	err = NewSMTPSender(smtpConfig()).Send(context.Background(), "bob@example.com\r\nBcc: eve@example.com", "s", "b")
	assert.ErrorIs(t, err, errHeaderInjection)
}

func TestSMTPSender_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	orig := sendMail
	sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}
	defer func() { close(release); sendMail = orig }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewSMTPSender(smtpConfig()).Send(ctx, "bob@example.com", "s", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogSender_LogsInsteadOfSending(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(logging.NewJSONLogger(&buf, "info"))

	require.NoError(t, s.Send(context.Background(), "bob@example.com", "subj", "<a href=x?token=secret>link</a>"))
	assert.Contains(t, buf.String(), `"to":"bob@example.com"`)
	assert.Contains(t, buf.String(), `"module":"mail"`)
	assert.NotContains(t, buf.String(), "token=secret")
}

func TestLogSender_BodyOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(logging.NewJSONLogger(&buf, "debug"))

	require.NoError(t, s.Send(context.Background(), "bob@example.com", "subj", "<a href=x?token=secret>link</a>"))
	assert.Contains(t, buf.String(), "token=secret")
}

func TestTemplates(t *testing.T) {
	m, err := CreateAccount("http://localhost:5173/", "a.b+c", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, createAccountSubject, m.Subject)
	assert.Contains(t, m.HTML, `href="http://localhost:5173/create-account?token=a.b%2Bc"`)
	assert.Contains(t, m.HTML, "expire dans 1 heure.")

	m, err = ResetPassword("https://ulpt.example.org", "tok", 90*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, resetPasswordSubject, m.Subject)
	assert.Contains(t, m.HTML, `href="https://ulpt.example.org/reset-password?token=tok"`)
	assert.Contains(t, m.HTML, "expire dans 90 minutes.")
}

func TestFrenchDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 heure"},
		{2 * time.Hour, "2 heures"},
		{90 * time.Minute, "90 minutes"},
		{time.Minute, "1 minute"},
		{10 * time.Second, "1 minute"},
		{48 * time.Hour, "2 jours"},
		{24 * time.Hour, "1 jour"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, frenchDuration(tt.in))
		})
	}
}

// Package mail delivers account emails over SMTP, or to the log when no
// SMTP server is configured.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wownote/internal/render"
)

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	TokenTTL time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends verification mail through an SMTP relay.
type SMTPMailer struct {
	cfg      Config
	renderer *render.Engine
	send     sendFunc
}

// NewSMTPMailer returns a mailer for cfg. Host and From are required.
func NewSMTPMailer(cfg Config, renderer *render.Engine) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("mail: host and from address are required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("mail: renderer is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, renderer: renderer, send: smtp.SendMail}, nil
}

// SendVerification mails the registration link to to.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, link string) error {
	subject, body, err := m.renderer.Verification(render.VerificationEmail{
		Email:     to,
		Link:      link,
		ExpiresIn: humanDuration(m.cfg.TokenTTL),
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	return m.send(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, body))
}

func buildMessage(from, to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

// LogMailer writes verification links to the log. Used in development.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendVerification(_ context.Context, to, link string) error {
	m.log.Info().Str("to", to).Str("link", link).Msg("verification mail (smtp not configured)")
	return nil
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		d = 24 * time.Hour
	}
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

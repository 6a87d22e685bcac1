// Package mailer delivers password reset codes.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"taskflow/internal/domain/errors"
)

//go:embed templates/reset.html
var templatesFS embed.FS

var resetTmpl = template.Must(template.ParseFS(templatesFS, "templates/reset.html"))

// Sender dispatches a reset code to an address. Implementations return an
// error wrapping ErrEmailDelivery when the message could not be sent.
type Sender interface {
	SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) Enabled() bool {
	return c.Host != ""
}

// SMTPSender sends HTML mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg Config) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

type resetData struct {
	Code   string
	Expiry string
}

func (s *SMTPSender) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrEmailDelivery, err)
	}
	msg, err := buildMessage(s.cfg.From, to, code, ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrEmailDelivery, err)
	}

	var a smtp.Auth
	if s.cfg.Username != "" {
		a = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, a, s.cfg.From, []string{to}, msg); err != nil {
		log.Println("[ERROR] Failed to send reset email:", err)
		return fmt.Errorf("%w: %v", errors.ErrEmailDelivery, err)
	}
	log.Println("[SUCCESS] Reset email sent")
	return nil
}

func buildMessage(from, to, code string, ttl time.Duration) ([]byte, error) {
	var body bytes.Buffer
	if err := resetTmpl.Execute(&body, resetData{Code: code, Expiry: FormatTTL(ttl)}); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	msg.WriteString("Subject: Password Reset Code\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// FormatTTL renders a code lifetime the way the email states it.
func FormatTTL(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl >= time.Minute:
		return plural(int(ttl/time.Minute), "minute")
	}
	return plural(int(ttl/time.Second), "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// LogSender writes the code to the service log instead of sending mail. It
// is used when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) SendResetCode(_ context.Context, to, code string, ttl time.Duration) error {
	log.Printf("[WARN] SMTP is not configured; reset code for %s is %s (valid %s)", maskAddress(to), code, FormatTTL(ttl))
	return nil
}

func maskAddress(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 1 {
		return addr
	}
	return addr[:1] + strings.Repeat("*", at-1) + addr[at:]
}

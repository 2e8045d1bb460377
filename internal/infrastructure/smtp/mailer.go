package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/shutterbook/studio-api/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg *config.Config) Mailer {
	return newMailer(cfg)
}

func newMailer(cfg *config.Config) *mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("header values must not contain line breaks")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return m.send(addr, auth, m.from, []string{to}, []byte(msg))
}

// CodeNotifier delivers one-time codes by email.
type CodeNotifier struct {
	mailer Mailer
}

func NewCodeNotifier(m Mailer) *CodeNotifier {
	return &CodeNotifier{mailer: m}
}

// SendCode mails code to the address. A cancelled context skips the send entirely.
func (n *CodeNotifier) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.mailer.SendEmail(to, "Your sign-in code", codeBody(code, ttl))
}

func codeBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your sign-in code is %s.\r\n\r\nIt expires in %d minutes and can be used once. "+
		"If you did not request it, you can ignore this email.\r\n", code, int(ttl.Minutes()))
}

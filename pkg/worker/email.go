package worker

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/queue"
)

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, email queue.EmailContent) error
}

// LogMailer writes emails to the log instead of sending them. It is the
// mailer of local and test environments.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send logs the receiver and subject.
func (m *LogMailer) Send(_ context.Context, email queue.EmailContent) error {
	m.log.Info().Str("to", email.ReceiverEmail).Str("subject", email.Subject).Msg("email")
	return nil
}

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
}

// SMTPMailer sends HTML emails through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer for the configured SMTP relay
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config, send: smtp.SendMail}
}

// Send delivers one HTML email.
func (m *SMTPMailer) Send(ctx context.Context, email queue.EmailContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	if err := m.send(addr, auth, m.config.From, []string{email.ReceiverEmail}, m.message(email)); err != nil {
		return fmt.Errorf("send email to %s: %w", email.ReceiverEmail, err)
	}
	return nil
}

func (m *SMTPMailer) message(email queue.EmailContent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", email.ReceiverEmail)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(email.Template)
	return []byte(b.String())
}

func (w *Workers) registerEmail(emails *queue.Queue) {
	handleEmail[queue.ChangePasswordEmail](w, emails)
	handleEmail[queue.ForgotPasswordEmail](w, emails)
	handleEmail[queue.CommentsEmail](w, emails)
	handleEmail[queue.FollowersEmail](w, emails)
	handleEmail[queue.ReactionsEmail](w, emails)
	handleEmail[queue.DirectMessageEmail](w, emails)
}

type emailPayload interface {
	queue.Payload
	Content() queue.EmailContent
}

func handleEmail[P emailPayload](w *Workers, emails *queue.Queue) {
	queue.Handle(emails, func(ctx context.Context, job *queue.Job, p P) error {
		return w.mailer.Send(ctx, p.Content())
	})
}

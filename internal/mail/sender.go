// Package mail delivers outbound email. The default log sender only records
// what would have been sent; the SMTP sender delivers it.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/storeadmin-io/storeadmin/internal/config"
)

const (
	ModeLog  = "log"
	ModeSMTP = "smtp"

	resetSubject = "Password Reset Request"
)

// Sender defines the interface for sending emails
type Sender interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// NewSender creates a new email sender based on configuration
func NewSender(cfg config.MailConfig, logger *slog.Logger) Sender {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mail")
	if cfg.Mode == ModeSMTP {
		return &smtpSender{config: cfg, logger: logger, send: smtp.SendMail}
	}
	return &logSender{logger: logger}
}

func resetBody(resetURL string) string {
	return fmt.Sprintf("To reset your password, visit the following link: %s\n\n"+
		"If you did not request this, please ignore this email.\n", resetURL)
}

// logSender logs emails instead of sending them (development mode)
type logSender struct {
	logger *slog.Logger
}

func (s *logSender) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	s.logger.InfoContext(ctx, "password reset email not sent, log mode",
		"to", to,
		"subject", resetSubject,
		"reset_url", resetURL,
	)
	return nil
}

// smtpSender sends emails via SMTP (production mode)
type smtpSender struct {
	config config.MailConfig
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *smtpSender) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := s.buildMessage(to, resetSubject, resetBody(resetURL))

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset email sent", "to", to)
	return nil
}

func (s *smtpSender) buildMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}

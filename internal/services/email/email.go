// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email renders and delivers account notifications.
package email

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/i18n"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"github.com/wneessen/go-mail"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg *config.SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg *config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send delivers msg via SMTP using go-mail.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := m.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct{}

// Send logs msg.
func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "email_logged",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

// NewSender returns an SMTP sender when SMTP is configured and a LogSender
// otherwise.
func NewSender(cfg *config.SMTPConfig) (Sender, error) {
	if !cfg.Enabled() {
		slog.Warn("smtp_disabled", "hint", "emails are written to the log")
		return LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}

var htmlLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<body style="font-family: sans-serif; line-height: 1.5; color: #1f2937;">
<p>{{.Greeting}}</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .ActionURL}}<p><a href="{{.ActionURL}}" style="display: inline-block; padding: 10px 18px; background: #2563eb; color: #fff; text-decoration: none; border-radius: 6px;">{{.ActionLabel}}</a></p>
{{end}}<p>{{.Signature}}</p>
</body>
</html>
`))

type htmlData struct {
	Lang        string
	Greeting    string
	Paragraphs  []string
	ActionURL   string
	ActionLabel string
	Signature   string
}

// Service composes the account notifications.
type Service struct {
	sender      Sender
	baseURL     string
	frontendURL string
}

// NewService creates a notification service. Verification links point at
// the API under baseURL; reset links point at the frontend.
func NewService(sender Sender, baseURL, frontendURL string) *Service {
	if frontendURL == "" {
		frontendURL = baseURL
	}
	return &Service{
		sender:      sender,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// VerificationURL is the link mailed for a verification token.
func (s *Service) VerificationURL(raw string) string {
	return s.baseURL + "/api/auth/verify-email/" + url.PathEscape(raw)
}

// ResetURL is the link mailed for a reset token.
func (s *Service) ResetURL(raw string) string {
	return s.frontendURL + "/reset-password/" + url.PathEscape(raw)
}

// SendVerificationLink mails the verification link for raw.
func (s *Service) SendVerificationLink(ctx context.Context, acct *models.Account, raw string, ttl time.Duration) error {
	verifyURL := s.VerificationURL(raw)
	body := i18n.TData(ctx, "email_verification_body", map[string]any{
		"VerifyURL": verifyURL,
		"Hours":     wholeUnits(ttl, time.Hour),
	})
	return s.deliver(ctx, acct, "email_verification_subject", body, verifyURL, "email_verification_action")
}

// SendVerificationCode mails a numeric verification code.
func (s *Service) SendVerificationCode(ctx context.Context, acct *models.Account, code string, ttl time.Duration) error {
	body := i18n.TData(ctx, "email_code_body", map[string]any{
		"Code":    code,
		"Minutes": wholeUnits(ttl, time.Minute),
	})
	return s.deliver(ctx, acct, "email_code_subject", body, "", "")
}

// SendPasswordReset mails the reset link for raw.
func (s *Service) SendPasswordReset(ctx context.Context, acct *models.Account, raw string, ttl time.Duration) error {
	resetURL := s.ResetURL(raw)
	body := i18n.TData(ctx, "email_reset_body", map[string]any{
		"ResetURL": resetURL,
		"Minutes":  wholeUnits(ttl, time.Minute),
	})
	return s.deliver(ctx, acct, "email_reset_subject", body, resetURL, "email_reset_action")
}

func (s *Service) deliver(ctx context.Context, acct *models.Account, subjectID, body, actionURL, actionID string) error {
	greeting := i18n.TData(ctx, "email_greeting", map[string]any{"Name": acct.Name})
	signature := i18n.T(ctx, "email_signature")

	msg := Message{
		To:      acct.Email,
		Subject: i18n.T(ctx, subjectID),
		Text:    greeting + "\n\n" + body + "\n\n" + signature + "\n",
	}

	data := htmlData{
		Lang:       i18n.GetLocale(ctx),
		Greeting:   greeting,
		Paragraphs: strings.Split(body, "\n\n"),
		Signature:  signature,
	}
	if actionURL != "" {
		data.ActionURL = actionURL
		data.ActionLabel = i18n.T(ctx, actionID)
	}
	var html strings.Builder
	if err := htmlLayout.Execute(&html, data); err != nil {
		return fmt.Errorf("rendering email: %w", err)
	}
	msg.HTML = html.String()

	if err := s.sender.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "email_send_failed", "account_id", acct.ID, "subject", subjectID, "error", err)
		return err
	}
	return nil
}

func wholeUnits(d, unit time.Duration) int {
	return int(math.Ceil(float64(d) / float64(unit)))
}

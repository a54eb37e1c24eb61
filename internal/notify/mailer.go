// ABOUTME: Email delivery over SMTP with STARTTLS.
// ABOUTME: Builds MIME messages with optional HTML bodies and attachments.

package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/fieldbus/cnc-gateway/internal/config"
)

// ErrNotConfigured indicates email delivery was requested but no SMTP host
// is configured.
var ErrNotConfigured = errors.New("SMTP configuration not available")

// Attachment is a file attached to an outgoing email. Content is base64
// encoded as received on the wire.
type Attachment struct {
	Filename    string
	Content     string
	ContentType string
}

// Email is one outgoing message.
type Email struct {
	To          string
	Subject     string
	Body        string
	CC          []string
	BCC         []string
	HTML        bool
	Attachments []Attachment
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// SMTPMailer delivers email through a configured SMTP relay.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, logger: logger.With("component", "mailer")}
}

// Send builds the MIME message and submits it to the relay. smtp.SendMail
// negotiates STARTTLS when the server offers it.
func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	if m.cfg.Host == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := buildMessage(m.from(), msg)
	if err != nil {
		return err
	}

	recipients := append([]string{msg.To}, msg.CC...)
	recipients = append(recipients, msg.BCC...)

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	m.logger.Info("sending email", "to", msg.To, "subject", msg.Subject, "recipients", len(recipients))

	if err := smtp.SendMail(addr, auth, m.from(), recipients, body); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.User
}

// buildMessage assembles an RFC 2045 multipart message.
func buildMessage(from string, msg Email) ([]byte, error) {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)

	headers := []string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
	}
	if len(msg.CC) > 0 {
		headers = append(headers, "Cc: "+strings.Join(msg.CC, ", "))
	}
	headers = append(headers,
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="`+writer.Boundary()+`"`,
	)

	bodyType := "text/plain"
	if msg.HTML {
		bodyType = "text/html"
	}
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {bodyType + `; charset="utf-8"`},
	})
	if err != nil {
		return nil, fmt.Errorf("building message body: %w", err)
	}
	if _, err := part.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("building message body: %w", err)
	}

	for _, att := range msg.Attachments {
		if _, err := base64.StdEncoding.DecodeString(att.Content); err != nil {
			return nil, fmt.Errorf("attachment %q is not valid base64: %w", att.Filename, err)
		}
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {`attachment; filename="` + att.Filename + `"`},
		})
		if err != nil {
			return nil, fmt.Errorf("building attachment %q: %w", att.Filename, err)
		}
		if _, err := part.Write([]byte(att.Content)); err != nil {
			return nil, fmt.Errorf("building attachment %q: %w", att.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + buf.String()), nil
}

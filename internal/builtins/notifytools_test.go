// ABOUTME: Tests for the notification tools with a fake mailer.

package builtins

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fieldbus/cnc-gateway/internal/notify"
	"github.com/fieldbus/cnc-gateway/internal/tools"
)

// fakeMailer records sent messages instead of talking SMTP.
type fakeMailer struct {
	sent []notify.Email
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg notify.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newNotifyDispatcher(t *testing.T, mailer notify.Mailer) *tools.Dispatcher {
	t.Helper()
	registry := tools.NewRegistry()
	pack := NewNotifyPack(mailer, notify.NewWebhookSender(testLogger(t)), testLogger(t))
	if err := pack.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return tools.NewDispatcher(registry, testLogger(t), nil)
}

func TestSendEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d := newNotifyDispatcher(t, mailer)

	result, err := d.Call(context.Background(), "send_email", map[string]any{
		"to":      "ops@example.com",
		"subject": "Spindle check",
		"body":    "<p>inspect EQ1</p>",
		"cc":      []any{"shift@example.com"},
		"is_html": true,
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(result.Text(), "Email sent successfully to ops@example.com") {
		t.Errorf("unexpected result: %s", result.Text())
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 sent email, got %d", len(mailer.sent))
	}
	sent := mailer.sent[0]
	if !sent.HTML || len(sent.CC) != 1 || sent.CC[0] != "shift@example.com" {
		t.Errorf("unexpected message: %+v", sent)
	}
}

func TestSendEmail_RequiresFields(t *testing.T) {
	d := newNotifyDispatcher(t, &fakeMailer{})
	_, err := d.Call(context.Background(), "send_email", map[string]any{"to": "x@example.com"})
	if err == nil {
		t.Error("expected schema validation error for missing subject/body")
	}
}

func TestSendEmail_MailerNotConfigured(t *testing.T) {
	d := newNotifyDispatcher(t, &fakeMailer{err: notify.ErrNotConfigured})

	result, err := d.Call(context.Background(), "send_email", map[string]any{
		"to": "x@example.com", "subject": "s", "body": "b",
	})
	if err != nil {
		t.Fatalf("mailer errors must become results: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Text(), "SMTP configuration not available") {
		t.Errorf("unexpected result: %s", result.Text())
	}
}

func TestSendTemplateEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d := newNotifyDispatcher(t, mailer)

	_, err := d.Call(context.Background(), "send_template_email", map[string]any{
		"to":       "crew@example.com",
		"template": "welcome",
		"variables": map[string]any{
			"name": "Jordan",
		},
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 sent email, got %d", len(mailer.sent))
	}
	sent := mailer.sent[0]
	if sent.Subject != "Welcome Jordan!" {
		t.Errorf("unexpected subject: %q", sent.Subject)
	}
	if sent.To != "crew@example.com" || !sent.HTML {
		t.Errorf("unexpected message: %+v", sent)
	}
}

func TestSendTemplateEmail_RejectsUnknownTemplate(t *testing.T) {
	d := newNotifyDispatcher(t, &fakeMailer{})
	_, err := d.Call(context.Background(), "send_template_email", map[string]any{
		"to": "x@example.com", "template": "bogus",
	})
	if err == nil {
		t.Error("expected schema enum rejection for unknown template")
	}
}

func TestSendWebhook(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := newNotifyDispatcher(t, &fakeMailer{})
	result, err := d.Call(context.Background(), "send_webhook", map[string]any{
		"url":     server.URL + "/hooks/alarm",
		"payload": map[string]any{"event": "overheat"},
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if gotPath != "/hooks/alarm" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if !strings.Contains(result.Text(), "Webhook sent successfully") || !strings.Contains(result.Text(), "Status: 200") {
		t.Errorf("unexpected result: %s", result.Text())
	}
}

func TestSendWebhook_FailureBecomesErrorResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := newNotifyDispatcher(t, &fakeMailer{})
	result, err := d.Call(context.Background(), "send_webhook", map[string]any{
		"url":     server.URL,
		"payload": map[string]any{"event": "x"},
	})
	if err != nil {
		t.Fatalf("webhook failures must become results: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Text(), "Failed to send webhook") {
		t.Errorf("unexpected result: %s", result.Text())
	}
}

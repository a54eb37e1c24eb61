// ABOUTME: Builtin notification tools: email, templated email, and webhooks.

package builtins

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fieldbus/cnc-gateway/internal/notify"
	"github.com/fieldbus/cnc-gateway/internal/tools"
)

// NotifyPack provides the notification tools.
type NotifyPack struct {
	mailer  notify.Mailer
	webhook *notify.WebhookSender
	logger  *slog.Logger
}

// NewNotifyPack creates the pack over a mailer and webhook sender.
func NewNotifyPack(mailer notify.Mailer, webhook *notify.WebhookSender, logger *slog.Logger) *NotifyPack {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyPack{mailer: mailer, webhook: webhook, logger: logger.With("component", "notify")}
}

// Register adds all notification tools to the registry.
func (p *NotifyPack) Register(registry *tools.Registry) error {
	templateEnum := make([]any, 0, 4)
	for _, name := range notify.TemplateNames() {
		templateEnum = append(templateEnum, name)
	}

	defs := []tools.Tool{
		{
			Name:        "send_email",
			Description: "Send an email notification",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"to":      {Type: "string", Description: "Recipient email address"},
					"subject": {Type: "string", Description: "Email subject"},
					"body":    {Type: "string", Description: "Email body (supports HTML)"},
					"cc":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "CC recipients"},
					"bcc":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "BCC recipients"},
					"attachments": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"filename":     {Type: "string"},
								"content":      {Type: "string", Description: "Base64 encoded content"},
								"content_type": {Type: "string"},
							},
							Required: []string{"filename", "content"},
						},
						Description: "Email attachments",
					},
					"is_html": {Type: "boolean", Description: "Whether the body contains HTML"},
				},
				Required: []string{"to", "subject", "body"},
			},
			Handler: p.sendEmail,
		},
		{
			Name:        "send_template_email",
			Description: "Send an email using a predefined template",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"to":        {Type: "string", Description: "Recipient email address"},
					"template":  {Type: "string", Enum: templateEnum, Description: "Email template to use"},
					"variables": {Type: "object", Description: "Template variables"},
				},
				Required: []string{"to", "template"},
			},
			Handler: p.sendTemplateEmail,
		},
		{
			Name:        "send_webhook",
			Description: "Send a webhook notification",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"url":     {Type: "string", Description: "Webhook URL"},
					"method":  {Type: "string", Enum: []any{"POST", "PUT", "PATCH"}, Description: "HTTP method"},
					"payload": {Type: "object", Description: "Webhook payload"},
					"headers": {Type: "object", Description: "Additional headers"},
				},
				Required: []string{"url", "payload"},
			},
			Handler: p.sendWebhook,
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name, err)
		}
	}
	return nil
}

func (p *NotifyPack) sendEmail(ctx context.Context, args map[string]any) (*tools.Result, error) {
	msg := notify.Email{
		To:      stringArg(args, "to"),
		Subject: stringArg(args, "subject"),
		Body:    stringArg(args, "body"),
		CC:      stringListArg(args, "cc"),
		BCC:     stringListArg(args, "bcc"),
	}
	if html, ok := args["is_html"].(bool); ok {
		msg.HTML = html
	}
	msg.Attachments = attachmentsArg(args)

	if err := p.mailer.Send(ctx, msg); err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Email sent successfully to %s", msg.To)), nil
}

func (p *NotifyPack) sendTemplateEmail(ctx context.Context, args map[string]any) (*tools.Result, error) {
	template := stringArg(args, "template")
	variables, _ := args["variables"].(map[string]any)

	msg, err := notify.RenderTemplate(template, variables)
	if err != nil {
		return nil, fmt.Errorf("Failed to send template email: %w", err)
	}
	msg.To = stringArg(args, "to")

	if err := p.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("Failed to send template email: %w", err)
	}
	return tools.TextResult(fmt.Sprintf("Email sent successfully to %s", msg.To)), nil
}

func (p *NotifyPack) sendWebhook(ctx context.Context, args map[string]any) (*tools.Result, error) {
	url := stringArg(args, "url")
	method := stringArg(args, "method")
	payload, _ := args["payload"].(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	headers := map[string]string{}
	if raw, ok := args["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	status, err := p.webhook.Send(ctx, url, method, payload, headers)
	if err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Webhook sent successfully to %s (Status: %d)", url, status)), nil
}

func attachmentsArg(args map[string]any) []notify.Attachment {
	raw, ok := args["attachments"].([]any)
	if !ok {
		return nil
	}
	out := make([]notify.Attachment, 0, len(raw))
	for _, item := range raw {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, notify.Attachment{
			Filename:    stringArg(rec, "filename"),
			Content:     stringArg(rec, "content"),
			ContentType: stringArg(rec, "content_type"),
		})
	}
	return out
}

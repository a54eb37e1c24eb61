// ABOUTME: Predefined email templates with {placeholder} substitution.

package notify

import (
	"fmt"
	"strings"
)

type emailTemplate struct {
	subject string
	body    string
	html    bool
}

// Templates are addressed by name from the send_template_email tool.
var emailTemplates = map[string]emailTemplate{
	"welcome": {
		subject: "Welcome {name}!",
		body: `<h1>Welcome to our service!</h1>
<p>Hello {name},</p>
<p>Thank you for joining us. We're excited to have you on board!</p>
<p>Best regards,<br>The Team</p>`,
		html: true,
	},
	"notification": {
		subject: "Notification: {title}",
		body: `<h2>{title}</h2>
<p>{message}</p>
<p>Details: {details}</p>`,
		html: true,
	},
	"alert": {
		subject: "ALERT: {alert_type}",
		body: `<h2 style="color: red;">ALERT: {alert_type}</h2>
<p><strong>Message:</strong> {message}</p>
<p><strong>Severity:</strong> {severity}</p>
<p><strong>Time:</strong> {timestamp}</p>`,
		html: true,
	},
	"report": {
		subject: "Report: {report_name}",
		body: `<h2>Report: {report_name}</h2>
<p>Generated on: {date}</p>
<div>{content}</div>`,
		html: true,
	},
}

// TemplateNames lists the available template names for schema enums.
func TemplateNames() []string {
	return []string{"welcome", "notification", "alert", "report"}
}

// RenderTemplate fills a named template's {placeholders} from variables and
// returns the resulting message addressed to nobody; the caller sets To.
func RenderTemplate(name string, variables map[string]any) (Email, error) {
	tmpl, ok := emailTemplates[name]
	if !ok {
		return Email{}, fmt.Errorf("unknown email template: %s", name)
	}

	subject := tmpl.subject
	body := tmpl.body
	for key, value := range variables {
		placeholder := "{" + key + "}"
		rendered := fmt.Sprintf("%v", value)
		subject = strings.ReplaceAll(subject, placeholder, rendered)
		body = strings.ReplaceAll(body, placeholder, rendered)
	}

	return Email{Subject: subject, Body: body, HTML: tmpl.html}, nil
}

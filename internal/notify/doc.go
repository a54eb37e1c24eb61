// Package notify delivers outbound notifications: SMTP email (with
// multipart attachments and predefined HTML templates) and JSON webhooks.
package notify

// ABOUTME: Outbound webhook delivery with payload timestamping.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// webhookTimeout bounds a single webhook delivery.
const webhookTimeout = 30 * time.Second

// WebhookSender delivers JSON payloads to caller-supplied URLs.
type WebhookSender struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSender creates a webhook sender.
func NewWebhookSender(logger *slog.Logger) *WebhookSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger.With("component", "webhook"),
	}
}

// Send delivers the payload with the given method and extra headers. A
// delivery timestamp is stamped into the payload. Non-2xx responses are
// errors.
func (s *WebhookSender) Send(ctx context.Context, url, method string, payload map[string]any, headers map[string]string) (int, error) {
	if method == "" {
		method = http.MethodPost
	}

	payload["timestamp"] = time.Now().Format(time.RFC3339)
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	s.logger.Info("sending webhook", "url", url, "method", method)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("failed to send webhook: status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// ABOUTME: Retry-wrapped HTTP client for the backing CNC data API.
// ABOUTME: Bounds concurrency with a permit pool and retries transient failures.

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/fieldbus/cnc-gateway/internal/config"
)

// ErrPermanent indicates a non-retryable upstream failure: a 4xx response,
// or a transient failure that survived all retry attempts.
var ErrPermanent = errors.New("permanent upstream error")

// Retry policy constants. The base delay doubles per attempt and is capped.
const (
	DefaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
	defaultDelayCap    = 10 * time.Second
)

// MaxResponseBodySize is the maximum upstream response body read (8MB).
const MaxResponseBodySize = 8 << 20

// Client performs outbound calls to the backing data API with bounded
// exponential-backoff retry and a fixed-size permit pool.
type Client struct {
	baseURL     string
	apiKey      string
	userAgent   string
	maxAttempts int
	baseDelay   time.Duration
	delayCap    time.Duration

	httpClient *http.Client
	permits    *semaphore.Weighted
	logger     *slog.Logger
}

// NewClient creates a client from the upstream configuration.
// The User-Agent is derived from the server identity.
func NewClient(cfg config.UpstreamConfig, serverName, serverVersion string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		userAgent:   fmt.Sprintf("%s/%s", serverName, serverVersion),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		delayCap:    defaultDelayCap,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		permits:     semaphore.NewWeighted(int64(maxConcurrent)),
		logger:      logger.With("component", "upstream"),
	}
}

// Get performs a GET request against the given endpoint with query params.
// JSON object bodies decode to a map; any other body is wrapped as
// {"content": <text>, "status_code": <status>}.
//
// Transient failures (connection errors, timeouts, 5xx) are retried with
// exponential backoff up to the attempt bound. 4xx responses fail
// immediately with ErrPermanent. A saturated permit pool makes the call
// wait; the wait is bounded only by ctx.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	if err := c.permits.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring upstream permit: %w", err)
	}
	defer c.permits.Release(1)

	reqURL := c.buildURL(endpoint, params)

	var result map[string]any
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1),
		retry.WithCappedDuration(c.delayCap, retry.NewExponential(c.baseDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		// Retries exhausted on a transient failure
		return nil, fmt.Errorf("%w: retries exhausted: %v", ErrPermanent, err)
	}
	return result, nil
}

// doRequest performs a single request attempt. Transient failures are
// wrapped with retry.RetryableError so the backoff loop retries them.
func (c *Client) doRequest(ctx context.Context, reqURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("upstream request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection errors and client timeouts are transient
		c.logger.Warn("upstream request failed", "url", reqURL, "error", err)
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("reading response body: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		c.logger.Warn("upstream server error", "url", reqURL, "status", resp.StatusCode)
		return nil, retry.RetryableError(fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		c.logger.Error("upstream client error", "url", reqURL, "status", resp.StatusCode, "body", truncate(string(body), 256))
		return nil, fmt.Errorf("%w: upstream status %d", ErrPermanent, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	c.logger.Debug("upstream response", "status", resp.StatusCode, "content_type", contentType)

	if strings.Contains(contentType, "application/json") {
		if decoded, ok := decodeJSONObject(body); ok {
			return decoded, nil
		}
	}
	return map[string]any{
		"content":     string(body),
		"status_code": resp.StatusCode,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	// Guest-access upstreams reject Authorization headers outright
	if c.apiKey != "" && c.apiKey != config.GuestAPIKey {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// buildURL joins the base URL and endpoint. A base URL ending in "." is
// concatenated verbatim (Frappe dotted-method endpoints); otherwise the
// two are joined with a single slash.
func (c *Client) buildURL(endpoint string, params map[string]string) string {
	var full string
	if strings.HasSuffix(c.baseURL, ".") {
		full = c.baseURL + endpoint
	} else {
		full = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	}

	if len(params) == 0 {
		return full
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return full + "?" + values.Encode()
}

func decodeJSONObject(body []byte) (map[string]any, bool) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a whole webhook request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 64 << 10

// Client posts messages to Slack Incoming Webhooks.
type Client struct {
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for response anomalies.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a Client with DefaultTimeout and the default logger.
func NewClient(opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Deliver POSTs msg to webhookURL, routing through proxyURL when it is not
// empty. See the package documentation for how failures are reported.
func (c *Client) Deliver(ctx context.Context, webhookURL, proxyURL string, msg *Message) error {
	target, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return err
	}
	proxy, err := ParseProxy(proxyURL)
	if err != nil {
		return err
	}

	body, err := msg.JSON()
	if err != nil {
		return fmt.Errorf("slack: encode message: %w", err)
	}

	transport := &http.Transport{
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: c.timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &DeliveryError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("slack: webhook rejected message",
			"host", target.Host,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return &DeliveryError{Kind: KindUnexpectedStatus, StatusCode: resp.StatusCode}
	}
	if readErr != nil {
		return &DeliveryError{Kind: KindTransport, Err: fmt.Errorf("read response: %w", readErr)}
	}

	if string(respBody) != "ok" {
		c.log.Warn("slack: unexpected webhook response body",
			"host", target.Host,
			"body", string(respBody),
		)
	}
	return nil
}

// ParseWebhookURL validates a webhook URL. Only absolute http and https URLs
// are accepted.
func ParseWebhookURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ConfigError{Field: "webhook_url", Reason: "empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{Field: "webhook_url", Reason: "malformed URL", Err: errors.Unwrap(err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigError{Field: "webhook_url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &ConfigError{Field: "webhook_url", Reason: "missing host"}
	}
	return u, nil
}

// ParseProxy parses a proxy URI of the form scheme://[user:password@]host:port.
// An empty string means no proxy and yields (nil, nil). User info without a
// ':' separator is rejected.
func ParseProxy(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{Field: "proxy", Reason: "malformed URL", Err: errors.Unwrap(err)}
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, &ConfigError{Field: "proxy", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Hostname() == "" {
		return nil, &ConfigError{Field: "proxy", Reason: "missing host"}
	}
	if u.User != nil {
		if _, ok := u.User.Password(); !ok {
			return nil, &ConfigError{Field: "proxy", Reason: "credentials must be user:password"}
		}
	}
	return u, nil
}

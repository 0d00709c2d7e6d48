// Package shopify is a minimal Admin API client covering webhook
// subscription management.
package shopify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const defaultAPIVersion = "2024-10"

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a client for one shop's Admin API. tokenSource supplies the
// per-shop admin access token; for offline tokens use
// oauth2.StaticTokenSource.
func New(shopDomain string, tokenSource oauth2.TokenSource, opts ...Option) *Client {
	cfg := &clientConfig{
		apiVersion: defaultAPIVersion,
		logger:     slog.Default(),
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/admin/api/%s", shopDomain, cfg.apiVersion)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: &shopifyTransport{base: http.DefaultTransport, tokenSource: tokenSource},
			Timeout:   cfg.timeout,
		},
		logger: cfg.logger,
	}
}

type clientConfig struct {
	baseURL    string
	apiVersion string
	logger     *slog.Logger
	timeout    time.Duration
}

type Option func(*clientConfig)

// WithBaseURL overrides the shop-derived URL, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(cfg *clientConfig) { cfg.baseURL = baseURL }
}

func WithAPIVersion(version string) Option {
	return func(cfg *clientConfig) { cfg.apiVersion = version }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) { cfg.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := go_json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := go_json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

type shopifyTransport struct {
	base        http.RoundTripper
	tokenSource oauth2.TokenSource
}

var _ http.RoundTripper = (*shopifyTransport)(nil)

func (t *shopifyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	req.Header.Set("X-Shopify-Access-Token", token.AccessToken)
	req.Header.Set("Accept", "application/json")

	return t.base.RoundTrip(req)
}

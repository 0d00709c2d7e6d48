package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giftry/shophook/internal/service/webhook"
	"github.com/giftry/shophook/internal/signature"
	"github.com/giftry/shophook/internal/storage"
	go_json "github.com/goccy/go-json"
)

const (
	testSecret = "shpss_test_secret"
	testShop   = "gifts.myshopify.com"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	backend := storage.NewMemoryBackend(storage.MemoryConfig{
		RateLimit:  20,
		RateWindow: time.Minute,
	})
	t.Cleanup(func() { _ = backend.Close() })

	registry := webhook.NewRegistry()
	registry.Register("orders/create", func(ctx context.Context, env *webhook.Envelope) error {
		return nil
	})

	processor := webhook.NewProcessor(webhook.StaticSecret(testSecret), registry, backend, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/shopify", NewWebhook(processor).HandleWebhook)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postWebhook(t *testing.T, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url+"/webhooks/shopify", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeStatus(t *testing.T, resp *http.Response) string {
	t.Helper()

	var body statusResponse
	if err := go_json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body.Status
}

func validHeaders(body []byte, deliveryID string) map[string]string {
	h := map[string]string{
		headerShopifyHmac:       signature.Sign(body, testSecret),
		headerShopifyTopic:      "orders/create",
		headerShopifyShopDomain: testShop,
	}
	if deliveryID != "" {
		h[headerShopifyWebhookID] = deliveryID
	}
	return h
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":1001}`)

	tests := []struct {
		name       string
		body       []byte
		headers    map[string]string
		wantCode   int
		wantStatus string
	}{
		{
			name:       "accepted",
			body:       body,
			headers:    validHeaders(body, "delivery-accept"),
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "missing headers",
			body: body,
			headers: map[string]string{
				headerShopifyTopic: "orders/create",
			},
			wantCode:   http.StatusBadRequest,
			wantStatus: "missing_headers",
		},
		{
			name: "invalid signature",
			body: body,
			headers: map[string]string{
				headerShopifyHmac:       signature.Sign(body, "wrong"),
				headerShopifyTopic:      "orders/create",
				headerShopifyShopDomain: testShop,
			},
			wantCode:   http.StatusUnauthorized,
			wantStatus: "invalid_signature",
		},
		{
			name: "unknown topic",
			body: body,
			headers: map[string]string{
				headerShopifyHmac:       signature.Sign(body, testSecret),
				headerShopifyTopic:      "products/delete",
				headerShopifyShopDomain: testShop,
			},
			wantCode:   http.StatusBadRequest,
			wantStatus: "invalid_topic",
		},
		{
			name: "stale timestamp",
			body: body,
			headers: func() map[string]string {
				h := validHeaders(body, "")
				h[headerShopifyTriggeredAt] = time.Now().Add(-time.Hour).Format(time.RFC3339)
				return h
			}(),
			wantCode:   http.StatusBadRequest,
			wantStatus: "stale_timestamp",
		},
		{
			name: "invalid payload",
			body: []byte("not json"),
			headers: map[string]string{
				headerShopifyHmac:       signature.Sign([]byte("not json"), testSecret),
				headerShopifyTopic:      "orders/create",
				headerShopifyShopDomain: testShop,
			},
			wantCode:   http.StatusBadRequest,
			wantStatus: "invalid_payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t)
			resp := postWebhook(t, srv.URL, tt.body, tt.headers)

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if got := decodeStatus(t, resp); got != tt.wantStatus {
				t.Errorf("body status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestHandleWebhookDuplicate(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	body := []byte(`{"id":1001}`)
	headers := validHeaders(body, "delivery-dup")

	first := postWebhook(t, srv.URL, body, headers)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first delivery status = %d", first.StatusCode)
	}

	second := postWebhook(t, srv.URL, body, headers)
	if second.StatusCode != http.StatusOK {
		t.Errorf("redelivery status = %d, want 200", second.StatusCode)
	}
	if got := decodeStatus(t, second); got != "already_processed" {
		t.Errorf("redelivery body status = %q, want already_processed", got)
	}
}

func TestHandleWebhookRateLimited(t *testing.T) {
	t.Parallel()

	backend := storage.NewMemoryBackend(storage.MemoryConfig{
		RateLimit:  1,
		RateWindow: time.Minute,
	})
	t.Cleanup(func() { _ = backend.Close() })

	registry := webhook.NewRegistry()
	registry.Register("orders/create", func(ctx context.Context, env *webhook.Envelope) error {
		return nil
	})
	processor := webhook.NewProcessor(webhook.StaticSecret(testSecret), registry, backend, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/shopify", NewWebhook(processor).HandleWebhook)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	body := []byte(`{"id":1}`)

	first := postWebhook(t, srv.URL, body, validHeaders(body, ""))
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", first.StatusCode)
	}

	second := postWebhook(t, srv.URL, body, validHeaders(body, ""))
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.StatusCode)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429")
	}
	if got := decodeStatus(t, second); got != "rate_limited" {
		t.Errorf("body status = %q, want rate_limited", got)
	}
}

func TestHandleWebhookMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/webhooks/shopify", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
}

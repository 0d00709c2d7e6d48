package shopify

import (
	"context"
	"net/http"
)

type WebhookSubscription struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

type webhookEnvelope struct {
	Webhook WebhookSubscription `json:"webhook"`
}

// CreateWebhookSubscription registers address to receive topic events.
// Shopify rejects a second subscription for the same topic and address
// with a 422, which callers should treat as terminal.
func (c *Client) CreateWebhookSubscription(ctx context.Context, sub WebhookSubscription) error {
	if sub.Format == "" {
		sub.Format = "json"
	}

	var created webhookEnvelope
	if err := c.do(ctx, http.MethodPost, "/webhooks.json", webhookEnvelope{Webhook: sub}, &created); err != nil {
		return err
	}
	return nil
}

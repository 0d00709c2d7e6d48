package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/giftry/shophook/internal/service/webhook"
	"github.com/giftry/shophook/internal/xerrors"
	"github.com/giftry/shophook/internal/xhttp"
	"github.com/giftry/shophook/internal/xslog"
)

const (
	headerShopifyHmac        = "X-Shopify-Hmac-Sha256"
	headerShopifyTopic       = "X-Shopify-Topic"
	headerShopifyShopDomain  = "X-Shopify-Shop-Domain"
	headerShopifyWebhookID   = "X-Shopify-Webhook-Id"
	headerShopifyTriggeredAt = "X-Shopify-Triggered-At"
)

// maxBodySize caps webhook bodies at 2MB, which is Shopify's own payload
// ceiling.
const maxBodySize = 2 << 20

type statusResponse struct {
	Status string `json:"status"`
}

type Webhook struct {
	service webhook.Service
}

func NewWebhook(service webhook.Service) *Webhook {
	return &Webhook{service: service}
}

// HandleWebhook handles POST /webhooks/shopify requests.
func (h *Webhook) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			xerrors.WriteError(ctx, w, xerrors.PayloadTooLarge(
				xerrors.WithReason("payload_too_large"),
				xerrors.WithMessage("body exceeds 2MB limit"),
			))
			return
		}
		logger.ErrorContext(ctx, "failed to read webhook body", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.BadRequest(
			xerrors.WithReason(webhook.ReasonInvalidPayload),
			xerrors.WithMessage("failed to read request body"),
		))
		return
	}

	req := webhook.ProcessRequest{
		Body:        body,
		Signature:   r.Header.Get(headerShopifyHmac),
		Topic:       r.Header.Get(headerShopifyTopic),
		Shop:        r.Header.Get(headerShopifyShopDomain),
		DeliveryID:  r.Header.Get(headerShopifyWebhookID),
		TriggeredAt: r.Header.Get(headerShopifyTriggeredAt),
	}

	err = h.service.ProcessWebhook(ctx, req)
	if err == nil {
		xhttp.WriteOK(w, statusResponse{Status: webhook.ReasonOK})
		return
	}

	// a redelivery of handled work: 200 so the platform stops retrying
	if errors.Is(err, webhook.ErrDuplicateDelivery) {
		xhttp.WriteOK(w, statusResponse{Status: webhook.ReasonAlreadyProcessed})
		return
	}

	xerrors.WriteError(ctx, w, toHTTPError(err))
}

func toHTTPError(err error) *xerrors.Error {
	reason := webhook.Reason(err)

	switch {
	case errors.Is(err, webhook.ErrMissingHeaders):
		return xerrors.BadRequest(xerrors.WithReason(reason), xerrors.WithMessage("missing signature, topic, or shop header"))
	case errors.Is(err, webhook.ErrInvalidSignature):
		return xerrors.Unauthorized(xerrors.WithReason(reason), xerrors.WithMessage("signature verification failed"))
	case errors.Is(err, webhook.ErrStaleTimestamp):
		return xerrors.BadRequest(xerrors.WithReason(reason), xerrors.WithMessage("delivery timestamp too old"))
	case errors.Is(err, webhook.ErrUnknownTopic):
		return xerrors.BadRequest(xerrors.WithReason(reason), xerrors.WithMessage("topic not accepted by this endpoint"))
	case errors.Is(err, webhook.ErrInvalidPayload):
		return xerrors.BadRequest(xerrors.WithReason(reason), xerrors.WithMessage("body is not valid JSON"))
	case errors.Is(err, webhook.ErrStoreUnavailable):
		return xerrors.ServiceUnavailable(xerrors.WithReason(reason), xerrors.WithCause(err))
	}

	var rateErr *webhook.RateLimitError
	if errors.As(err, &rateErr) {
		return xerrors.TooManyRequests(
			xerrors.WithReason(reason),
			xerrors.WithMessage("shop exceeded webhook rate limit"),
			xerrors.WithRetryAfter(rateErr.RetryAfter),
		)
	}

	// handler failures and anything unexpected: 500 so the platform
	// redelivers, which is safe because the claim was released
	return xerrors.Internal(xerrors.WithReason(webhook.ReasonHandlerError), xerrors.WithCause(err))
}

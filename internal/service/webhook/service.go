package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingHeaders    = errors.New("missing required headers")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrStaleTimestamp    = errors.New("timestamp too old")
	ErrDuplicateDelivery = errors.New("delivery already processed")
	ErrUnknownTopic      = errors.New("no handler registered for topic")
	ErrInvalidPayload    = errors.New("body is not valid JSON")
	ErrStoreUnavailable  = errors.New("shared store unavailable")
)

// RateLimitError carries the remaining window so the response can include
// Retry-After.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return "rate limit exceeded" }

// HandlerError wraps a business handler failure or timeout.
type HandlerError struct {
	Cause error
}

func (e *HandlerError) Error() string { return "handler failed: " + e.Cause.Error() }
func (e *HandlerError) Unwrap() error { return e.Cause }

// Reason codes written to responses and the audit log.
const (
	ReasonOK               = "ok"
	ReasonMissingHeaders   = "missing_headers"
	ReasonInvalidSignature = "invalid_signature"
	ReasonStaleTimestamp   = "stale_timestamp"
	ReasonAlreadyProcessed = "already_processed"
	ReasonInvalidTopic     = "invalid_topic"
	ReasonRateLimited      = "rate_limited"
	ReasonInvalidPayload   = "invalid_payload"
	ReasonHandlerError     = "handler_error"
	ReasonStoreUnavailable = "store_unavailable"
)

// Reason maps a processing outcome to its reason code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, ErrMissingHeaders):
		return ReasonMissingHeaders
	case errors.Is(err, ErrInvalidSignature):
		return ReasonInvalidSignature
	case errors.Is(err, ErrStaleTimestamp):
		return ReasonStaleTimestamp
	case errors.Is(err, ErrDuplicateDelivery):
		return ReasonAlreadyProcessed
	case errors.Is(err, ErrUnknownTopic):
		return ReasonInvalidTopic
	case errors.Is(err, ErrInvalidPayload):
		return ReasonInvalidPayload
	case errors.Is(err, ErrStoreUnavailable):
		return ReasonStoreUnavailable
	default:
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			return ReasonRateLimited
		}
		return ReasonHandlerError
	}
}

// ProcessRequest is one inbound delivery before validation. DeliveryID
// and TriggeredAt are optional: legacy senders omit them.
type ProcessRequest struct {
	Body        []byte
	Signature   string
	Topic       string
	Shop        string
	DeliveryID  string
	TriggeredAt string
}

// SecretProvider resolves the signing secret for a shop.
type SecretProvider interface {
	Secret(shop string) (string, error)
}

// StaticSecret is the single-app case: one API secret signs every shop's
// deliveries.
type StaticSecret string

func (s StaticSecret) Secret(string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no webhook secret configured")
	}
	return string(s), nil
}

type Service interface {
	// ProcessWebhook runs the full trust pipeline over one delivery.
	// Returns nil once the handler has run; ErrDuplicateDelivery for a
	// redelivery of an already-handled delivery (callers treat this as
	// success); one of the other sentinel errors, a *RateLimitError, or
	// a *HandlerError otherwise.
	ProcessWebhook(ctx context.Context, req ProcessRequest) error
}

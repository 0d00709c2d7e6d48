package webhook

import (
	"context"
	"time"
)

// Envelope is the validated, parsed representation of one inbound
// delivery. RawBody is the body exactly as received; Payload is only
// populated after the signature has been verified, and its topic-specific
// shape is the handler's concern.
type Envelope struct {
	Topic      string
	Shop       string
	DeliveryID string
	ReceivedAt time.Time
	RawBody    []byte
	Payload    any
}

// Handler is a business handler for one topic. A returned error maps to a
// 500, which tells the platform to redeliver; the idempotency claim is
// released first so the redelivery is actually processed.
type Handler func(ctx context.Context, env *Envelope) error

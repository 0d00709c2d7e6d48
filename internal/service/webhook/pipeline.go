package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/giftry/shophook/internal/audit"
	"github.com/giftry/shophook/internal/clock"
	"github.com/giftry/shophook/internal/metrics"
	"github.com/giftry/shophook/internal/signature"
	"github.com/giftry/shophook/internal/storage"
	"github.com/giftry/shophook/internal/topics"
	"github.com/giftry/shophook/internal/xslog"
	go_json "github.com/goccy/go-json"
)

const (
	// maxDeliveryAge bounds the replay window for senders that attach a
	// trigger timestamp.
	maxDeliveryAge = 5 * time.Minute

	defaultHandlerTimeout = 30 * time.Second
)

var _ Service = (*Processor)(nil)

// Processor is the trust pipeline for inbound deliveries. Check order
// matters: the signature comes first so nothing untrusted influences later
// decisions, and rate limiting sits after dedup and topic checks so that
// duplicate or malformed traffic does not consume a shop's budget.
type Processor struct {
	secrets        SecretProvider
	registry       *Registry
	idempotency    storage.IdempotencyStore
	limiter        storage.RateLimiter
	recorder       audit.Recorder
	metrics        *metrics.Metrics
	handlerTimeout time.Duration
	clock          clock.Clock
}

type ProcessorOption func(*Processor)

func WithHandlerTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.handlerTimeout = d }
}

func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func WithClock(c clock.Clock) ProcessorOption {
	return func(p *Processor) { p.clock = c }
}

func NewProcessor(secrets SecretProvider, registry *Registry, backend storage.Backend, recorder audit.Recorder, opts ...ProcessorOption) *Processor {
	p := &Processor{
		secrets:        secrets,
		registry:       registry,
		idempotency:    backend,
		limiter:        backend,
		recorder:       recorder,
		handlerTimeout: defaultHandlerTimeout,
		clock:          clock.Real{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) ProcessWebhook(ctx context.Context, req ProcessRequest) (err error) {
	receivedAt := p.clock.Now()
	topic := topics.Canonical(req.Topic)

	defer func() {
		p.record(ctx, req, topic, receivedAt, err)
	}()

	if req.Signature == "" || req.Topic == "" || req.Shop == "" {
		return ErrMissingHeaders
	}

	secret, secretErr := p.secrets.Secret(req.Shop)
	if secretErr != nil || !signature.Verify(req.Body, req.Signature, secret) {
		return ErrInvalidSignature
	}

	if req.TriggeredAt != "" && !p.isTimestampFresh(req.TriggeredAt, receivedAt) {
		return ErrStaleTimestamp
	}

	// Without a delivery ID there is nothing to dedupe on: the delivery is
	// always novel and the handler carries the at-least-once burden.
	claimed := false
	if req.DeliveryID != "" {
		ok, claimErr := p.idempotency.Claim(ctx, req.DeliveryID)
		if claimErr != nil {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, claimErr)
		}
		if !ok {
			return ErrDuplicateDelivery
		}
		claimed = true
	}

	// Any rejection past the claim releases it, so the sender's retry of
	// a failed delivery is not mistaken for a duplicate.
	defer func() {
		if err != nil && claimed {
			if releaseErr := p.idempotency.Release(ctx, req.DeliveryID); releaseErr != nil {
				xslog.FromContext(ctx).ErrorContext(ctx, "failed to release delivery claim",
					xslog.Error(releaseErr),
					xslog.DeliveryID(req.DeliveryID),
				)
			}
		}
	}()

	handler, ok := p.registry.Get(req.Topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, req.Topic)
	}

	rate, rateErr := p.limiter.Allow(ctx, req.Shop)
	if rateErr != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, rateErr)
	}
	if !rate.Allowed {
		return &RateLimitError{RetryAfter: rate.RetryAfter}
	}

	var payload any
	if unmarshalErr := go_json.Unmarshal(req.Body, &payload); unmarshalErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, unmarshalErr)
	}

	env := &Envelope{
		Topic:      topic,
		Shop:       req.Shop,
		DeliveryID: req.DeliveryID,
		ReceivedAt: receivedAt,
		RawBody:    req.Body,
		Payload:    payload,
	}

	handlerCtx, cancel := context.WithTimeout(ctx, p.handlerTimeout)
	defer cancel()

	if handlerErr := p.runHandler(handlerCtx, handler, env); handlerErr != nil {
		return &HandlerError{Cause: handlerErr}
	}

	return nil
}

// runHandler contains handler panics so one misbehaving topic cannot take
// down the request.
func (p *Processor) runHandler(ctx context.Context, handler Handler, env *Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, env)
}

func (p *Processor) isTimestampFresh(triggeredAt string, receivedAt time.Time) bool {
	t, err := time.Parse(time.RFC3339, triggeredAt)
	if err != nil {
		return false
	}
	return receivedAt.Sub(t) <= maxDeliveryAge
}

func (p *Processor) record(ctx context.Context, req ProcessRequest, topic string, receivedAt time.Time, err error) {
	reason := Reason(err)
	duration := p.clock.Now().Sub(receivedAt)

	// a redelivery of handled work is a success from the sender's view
	success := err == nil || reason == ReasonAlreadyProcessed

	p.metrics.ObserveWebhook(topic, reason, duration)
	if p.recorder == nil {
		return
	}
	p.recorder.Record(ctx, audit.Entry{
		Topic:      topic,
		Shop:       req.Shop,
		DeliveryID: req.DeliveryID,
		Success:    success,
		Reason:     reason,
		Duration:   duration,
		ReceivedAt: receivedAt,
	})
}

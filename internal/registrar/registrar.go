// Package registrar (re)creates the webhook subscriptions that make
// delivery happen, retrying transient failures per topic with exponential
// backoff. One topic failing never blocks the others.
package registrar

import (
	"context"
	"errors"
	"sync"

	"github.com/giftry/shophook/internal/client/shopify"
	"github.com/giftry/shophook/internal/clock"
	"github.com/giftry/shophook/internal/metrics"
	"github.com/giftry/shophook/internal/xslog"
	"golang.org/x/sync/errgroup"
)

const (
	resultSucceeded = "succeeded"
	resultRetried   = "retried"
	resultFailed    = "failed"
)

// SubscriptionAPI is the slice of the Admin API the registrar needs.
type SubscriptionAPI interface {
	CreateWebhookSubscription(ctx context.Context, sub shopify.WebhookSubscription) error
}

type Registrar struct {
	api     SubscriptionAPI
	backoff Backoff
	clock   clock.Clock
	metrics *metrics.Metrics
}

type Option func(*Registrar)

func WithBackoff(b Backoff) Option {
	return func(r *Registrar) { r.backoff = b }
}

func WithClock(c clock.Clock) Option {
	return func(r *Registrar) { r.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registrar) { r.metrics = m }
}

func New(api SubscriptionAPI, opts ...Option) *Registrar {
	r := &Registrar{
		api:     api,
		backoff: DefaultBackoff(),
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register subscribes callbackURL to every topic. Topics run concurrently
// and independently; the report lists each under succeeded or failed with
// its attempt count.
func (r *Registrar) Register(ctx context.Context, topicList []string, callbackURL string) Report {
	logger := xslog.FromContext(ctx)

	var (
		mu     sync.Mutex
		report Report
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topicList {
		g.Go(func() error {
			result := r.registerTopic(ctx, topic, callbackURL)

			mu.Lock()
			if result.Error == "" {
				report.Succeeded = append(report.Succeeded, result)
			} else {
				report.Failed = append(report.Failed, result)
			}
			mu.Unlock()

			if result.Error != "" {
				logger.WarnContext(ctx, "topic registration failed",
					xslog.Topic(topic),
					xslog.Attempt(result.Attempts),
					xslog.Reason(result.Error),
				)
			} else {
				logger.InfoContext(ctx, "topic registered",
					xslog.Topic(topic),
					xslog.Attempt(result.Attempts),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.sorted()
	return report
}

func (r *Registrar) registerTopic(ctx context.Context, topic, callbackURL string) TopicResult {
	result := TopicResult{Topic: topic}

	for attempt := 1; attempt <= r.backoff.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := r.api.CreateWebhookSubscription(ctx, shopify.WebhookSubscription{
			Topic:   topic,
			Address: callbackURL,
			Format:  "json",
		})
		if err == nil {
			r.metrics.ObserveRegistrarAttempt(topic, resultSucceeded)
			result.Error = ""
			return result
		}

		result.Error = err.Error()

		if !isRetryable(err) || attempt == r.backoff.MaxAttempts {
			r.metrics.ObserveRegistrarAttempt(topic, resultFailed)
			return result
		}

		r.metrics.ObserveRegistrarAttempt(topic, resultRetried)

		select {
		case <-r.clock.After(r.backoff.Delay(attempt)):
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return result
		}
	}

	return result
}

// isRetryable classifies a creation failure. API errors carry their own
// classification; cancellation is terminal; anything else (DNS failures,
// timeouts, connection resets) is treated as transient.
func isRetryable(err error) bool {
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

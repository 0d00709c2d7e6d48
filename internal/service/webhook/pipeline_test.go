package webhook

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giftry/shophook/internal/audit"
	"github.com/giftry/shophook/internal/clock"
	"github.com/giftry/shophook/internal/signature"
	"github.com/giftry/shophook/internal/storage"
)

const (
	testSecret = "shpss_test_secret"
	testShop   = "gifts.myshopify.com"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) Record(_ context.Context, entry audit.Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
}

func (s *recordingSink) last(t *testing.T) audit.Entry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return s.entries[len(s.entries)-1]
}

type testPipeline struct {
	processor *Processor
	registry  *Registry
	backend   *storage.MemoryBackend
	sink      *recordingSink
	clock     *clock.Mock
	invoked   *atomic.Int64
}

func newTestPipeline(t *testing.T, opts ...ProcessorOption) *testPipeline {
	t.Helper()

	mock := clock.NewMock(time.Unix(1_700_000_000, 0))
	backend := storage.NewMemoryBackend(storage.MemoryConfig{
		RateLimit:  20,
		RateWindow: time.Minute,
		Now:        func() time.Time { return mock.Current },
	})
	t.Cleanup(func() { _ = backend.Close() })

	registry := NewRegistry()
	invoked := &atomic.Int64{}
	registry.Register("orders/create", func(_ context.Context, _ *Envelope) error {
		invoked.Add(1)
		return nil
	})

	sink := &recordingSink{}
	opts = append([]ProcessorOption{WithClock(mock)}, opts...)
	processor := NewProcessor(StaticSecret(testSecret), registry, backend, sink, opts...)

	return &testPipeline{
		processor: processor,
		registry:  registry,
		backend:   backend,
		sink:      sink,
		clock:     mock,
		invoked:   invoked,
	}
}

func validRequest(deliveryID string) ProcessRequest {
	body := []byte(`{"id":1001,"line_items":[{"sku":"GIFT-01"}]}`)
	return ProcessRequest{
		Body:       body,
		Signature:  signature.Sign(body, testSecret),
		Topic:      "orders/create",
		Shop:       testShop,
		DeliveryID: deliveryID,
	}
}

func TestProcessWebhookHappyPath(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)

	if err := tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1")); err != nil {
		t.Fatalf("ProcessWebhook() error: %v", err)
	}

	if got := tp.invoked.Load(); got != 1 {
		t.Errorf("handler invoked %d times, want 1", got)
	}

	entry := tp.sink.last(t)
	if !entry.Success || entry.Reason != ReasonOK {
		t.Errorf("audit entry = success=%v reason=%q, want success=true reason=%q", entry.Success, entry.Reason, ReasonOK)
	}
	if entry.Topic != "orders_create" || entry.Shop != testShop {
		t.Errorf("audit entry topic=%q shop=%q", entry.Topic, entry.Shop)
	}
}

func TestProcessWebhookRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ProcessRequest)
		wantErr error
	}{
		{
			name:    "missing signature header",
			mutate:  func(r *ProcessRequest) { r.Signature = "" },
			wantErr: ErrMissingHeaders,
		},
		{
			name:    "missing shop header",
			mutate:  func(r *ProcessRequest) { r.Shop = "" },
			wantErr: ErrMissingHeaders,
		},
		{
			name:    "tampered body",
			mutate:  func(r *ProcessRequest) { r.Body = append(r.Body, ' ') },
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "wrong signature",
			mutate:  func(r *ProcessRequest) { r.Signature = signature.Sign(r.Body, "wrong") },
			wantErr: ErrInvalidSignature,
		},
		{
			name: "unregistered topic",
			mutate: func(r *ProcessRequest) {
				r.Topic = "products/delete"
			},
			wantErr: ErrUnknownTopic,
		},
		{
			name: "body not json",
			mutate: func(r *ProcessRequest) {
				r.Body = []byte("not json")
				r.Signature = signature.Sign(r.Body, testSecret)
			},
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tp := newTestPipeline(t)
			req := validRequest("delivery-1")
			tt.mutate(&req)

			err := tp.processor.ProcessWebhook(t.Context(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ProcessWebhook() = %v, want %v", err, tt.wantErr)
			}
			if got := tp.invoked.Load(); got != 0 {
				t.Errorf("handler invoked %d times, want 0", got)
			}

			entry := tp.sink.last(t)
			if entry.Success {
				t.Error("rejection recorded as success")
			}
		})
	}
}

func TestProcessWebhookStaleTimestamp(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)
	req := validRequest("delivery-1")
	req.TriggeredAt = tp.clock.Current.Add(-10 * time.Minute).Format(time.RFC3339)

	if err := tp.processor.ProcessWebhook(t.Context(), req); !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("ProcessWebhook() = %v, want %v", err, ErrStaleTimestamp)
	}

	// a fresh timestamp passes
	req = validRequest("delivery-2")
	req.TriggeredAt = tp.clock.Current.Add(-time.Minute).Format(time.RFC3339)
	if err := tp.processor.ProcessWebhook(t.Context(), req); err != nil {
		t.Fatalf("ProcessWebhook() with fresh timestamp: %v", err)
	}
}

func TestProcessWebhookDuplicateDelivery(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)

	if err := tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1")); !errors.Is(err, ErrDuplicateDelivery) {
		t.Fatalf("redelivery = %v, want %v", err, ErrDuplicateDelivery)
	}
	if got := tp.invoked.Load(); got != 1 {
		t.Errorf("handler invoked %d times, want 1", got)
	}

	entry := tp.sink.last(t)
	if !entry.Success || entry.Reason != ReasonAlreadyProcessed {
		t.Errorf("duplicate audit entry = success=%v reason=%q", entry.Success, entry.Reason)
	}
}

func TestProcessWebhookConcurrentRedelivery(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)

	const concurrency = 20
	var wg sync.WaitGroup
	results := make([]error, concurrency)

	for i := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1"))
		}()
	}
	wg.Wait()

	if got := tp.invoked.Load(); got != 1 {
		t.Fatalf("handler invoked %d times across %d concurrent redeliveries, want 1", got, concurrency)
	}

	var succeeded, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateDelivery):
			duplicates++
		default:
			t.Errorf("unexpected outcome: %v", err)
		}
	}
	if succeeded != 1 || duplicates != concurrency-1 {
		t.Errorf("outcomes = %d processed, %d duplicates; want 1 and %d", succeeded, duplicates, concurrency-1)
	}
}

func TestProcessWebhookMissingDeliveryIDAlwaysNovel(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)

	for range 3 {
		if err := tp.processor.ProcessWebhook(t.Context(), validRequest("")); err != nil {
			t.Fatalf("ProcessWebhook() error: %v", err)
		}
	}
	if got := tp.invoked.Load(); got != 3 {
		t.Errorf("handler invoked %d times, want 3 (no dedup without delivery ID)", got)
	}
}

func TestProcessWebhookHandlerFailureReleasesClaim(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)

	failures := &atomic.Int64{}
	tp.registry.Register("orders/updated", func(_ context.Context, _ *Envelope) error {
		if failures.Add(1) == 1 {
			return errors.New("registry row locked")
		}
		return nil
	})

	body := []byte(`{"id":1002}`)
	req := ProcessRequest{
		Body:       body,
		Signature:  signature.Sign(body, testSecret),
		Topic:      "orders/updated",
		Shop:       testShop,
		DeliveryID: "delivery-9",
	}

	var handlerErr *HandlerError
	if err := tp.processor.ProcessWebhook(t.Context(), req); !errors.As(err, &handlerErr) {
		t.Fatalf("first attempt = %v, want *HandlerError", err)
	}

	// the platform redelivers after a 500; the claim must be gone
	if err := tp.processor.ProcessWebhook(t.Context(), req); err != nil {
		t.Fatalf("redelivery after handler failure: %v", err)
	}
	if got := failures.Load(); got != 2 {
		t.Errorf("handler invoked %d times, want 2", got)
	}
}

func TestProcessWebhookRateLimited(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock(time.Unix(1_700_000_000, 0))
	backend := storage.NewMemoryBackend(storage.MemoryConfig{
		RateLimit:  2,
		RateWindow: time.Minute,
		Now:        func() time.Time { return mock.Current },
	})
	t.Cleanup(func() { _ = backend.Close() })

	registry := NewRegistry()
	registry.Register("orders/create", func(_ context.Context, _ *Envelope) error { return nil })
	sink := &recordingSink{}
	processor := NewProcessor(StaticSecret(testSecret), registry, backend, sink, WithClock(mock))

	for i := range 2 {
		req := validRequest("")
		if err := processor.ProcessWebhook(t.Context(), req); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	var rateErr *RateLimitError
	err := processor.ProcessWebhook(t.Context(), validRequest(""))
	if !errors.As(err, &rateErr) {
		t.Fatalf("third request = %v, want *RateLimitError", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", rateErr.RetryAfter)
	}
}

func TestProcessWebhookHandlerTimeout(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, WithHandlerTimeout(10*time.Millisecond))
	tp.registry.Register("orders/create", func(ctx context.Context, _ *Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var handlerErr *HandlerError
	if err := tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1")); !errors.As(err, &handlerErr) {
		t.Fatalf("ProcessWebhook() = %v, want *HandlerError", err)
	}
	if !errors.Is(handlerErr.Cause, context.DeadlineExceeded) {
		t.Errorf("cause = %v, want deadline exceeded", handlerErr.Cause)
	}
}

func TestProcessWebhookHandlerPanicContained(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)
	tp.registry.Register("orders/create", func(_ context.Context, _ *Envelope) error {
		panic("boom")
	})

	var handlerErr *HandlerError
	if err := tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1")); !errors.As(err, &handlerErr) {
		t.Fatalf("ProcessWebhook() = %v, want *HandlerError", err)
	}
}

func TestProcessWebhookPayloadDecodedOnlyAfterVerification(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)

	var sawPayload any
	tp.registry.Register("orders/create", func(_ context.Context, env *Envelope) error {
		sawPayload = env.Payload
		return nil
	})

	if err := tp.processor.ProcessWebhook(t.Context(), validRequest("delivery-1")); err != nil {
		t.Fatalf("ProcessWebhook() error: %v", err)
	}

	obj, ok := sawPayload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map", sawPayload)
	}
	if obj["id"] != float64(1001) {
		t.Errorf("payload id = %v, want 1001", obj["id"])
	}
}

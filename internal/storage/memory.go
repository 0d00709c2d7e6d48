package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Backend = (*MemoryBackend)(nil)

const (
	// DefaultRetention is how long a processed delivery ID stays deduped.
	DefaultRetention = 24 * time.Hour

	defaultMaxDeliveries = 10_000
	defaultMaxShops      = 1_000

	cleanupInterval = time.Minute
)

type MemoryConfig struct {
	RateLimit  int
	RateWindow time.Duration

	Retention     time.Duration // delivery ID retention, default 24h
	MaxDeliveries int           // idempotency table ceiling
	MaxShops      int           // rate window table ceiling

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

type MemoryBackend struct {
	mu         sync.Mutex
	deliveries map[string]time.Time // deliveryID -> processedAt
	windows    map[string]*rateWindow

	retention     time.Duration
	maxDeliveries int
	maxShops      int
	rateLimit     int
	rateWindow    time.Duration
	now           func() time.Time

	done chan struct{}
}

func NewMemoryBackend(cfg MemoryConfig) *MemoryBackend {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = defaultMaxDeliveries
	}
	if cfg.MaxShops <= 0 {
		cfg.MaxShops = defaultMaxShops
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &MemoryBackend{
		deliveries:    make(map[string]time.Time),
		windows:       make(map[string]*rateWindow),
		retention:     cfg.Retention,
		maxDeliveries: cfg.MaxDeliveries,
		maxShops:      cfg.MaxShops,
		rateLimit:     cfg.RateLimit,
		rateWindow:    cfg.RateWindow,
		now:           cfg.Now,
		done:          make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryBackend) Claim(_ context.Context, deliveryID string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if processedAt, ok := m.deliveries[deliveryID]; ok {
		if now.Sub(processedAt) <= m.retention {
			return false, nil
		}
		// expired entries are novel again
		delete(m.deliveries, deliveryID)
	}

	m.deliveries[deliveryID] = now
	if len(m.deliveries) > m.maxDeliveries {
		m.evictDeliveriesLocked(now)
	}
	return true, nil
}

func (m *MemoryBackend) Release(_ context.Context, deliveryID string) error {
	m.mu.Lock()
	delete(m.deliveries, deliveryID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Allow(_ context.Context, shop string) (RateLimitResult, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[shop]
	if !ok || now.After(w.resetAt) {
		if !ok && len(m.windows) >= m.maxShops {
			m.evictWindowsLocked(now)
		}
		w = &rateWindow{resetAt: now.Add(m.rateWindow)}
		m.windows[shop] = w
	}

	w.count++
	return RateLimitResult{
		Allowed:    w.count <= m.rateLimit,
		RetryAfter: w.resetAt.Sub(now),
	}, nil
}

// Cleanup drops expired deliveries and rate windows. The background loop
// calls it once a minute; tests call it directly.
func (m *MemoryBackend) Cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, processedAt := range m.deliveries {
		if now.Sub(processedAt) > m.retention {
			delete(m.deliveries, id)
		}
	}
	for shop, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, shop)
		}
	}
}

// evictDeliveriesLocked removes the oldest entries until the table is back
// under 90% of the ceiling.
func (m *MemoryBackend) evictDeliveriesLocked(now time.Time) {
	for id, processedAt := range m.deliveries {
		if now.Sub(processedAt) > m.retention {
			delete(m.deliveries, id)
		}
	}

	target := m.maxDeliveries * 9 / 10
	if len(m.deliveries) <= target {
		return
	}

	type entry struct {
		id          string
		processedAt time.Time
	}
	entries := make([]entry, 0, len(m.deliveries))
	for id, processedAt := range m.deliveries {
		entries = append(entries, entry{id, processedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].processedAt.Before(entries[j].processedAt)
	})
	for _, e := range entries[:len(entries)-target] {
		delete(m.deliveries, e.id)
	}
}

// evictWindowsLocked drops expired windows first, then the windows whose
// reset time passed soonest, until back under the ceiling.
func (m *MemoryBackend) evictWindowsLocked(now time.Time) {
	for shop, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, shop)
		}
	}
	if len(m.windows) < m.maxShops {
		return
	}

	type entry struct {
		shop    string
		resetAt time.Time
	}
	entries := make([]entry, 0, len(m.windows))
	for shop, w := range m.windows {
		entries = append(entries, entry{shop, w.resetAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].resetAt.Before(entries[j].resetAt)
	})
	for _, e := range entries[:len(entries)-m.maxShops+1] {
		delete(m.windows, e.shop)
	}
}

func (m *MemoryBackend) Close() error {
	close(m.done)
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup(m.now())
		case <-m.done:
			return
		}
	}
}

// sizes reports table sizes for tests.
func (m *MemoryBackend) sizes() (deliveries, shops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deliveries), len(m.windows)
}

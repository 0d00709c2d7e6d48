package webhook

import (
	"sort"
	"sync"

	"github.com/giftry/shophook/internal/topics"
)

// Registry maps canonical topic names to handlers. It is owned by one
// pipeline instance, not a package global, so tests construct isolated
// pipelines.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register accepts either topic form (orders/create, ORDERS_CREATE).
// Registering the same topic twice replaces the handler.
func (r *Registry) Register(topic string, h Handler) {
	r.mu.Lock()
	r.handlers[topics.Canonical(topic)] = h
	r.mu.Unlock()
}

func (r *Registry) Get(topic string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[topics.Canonical(topic)]
	r.mu.RUnlock()
	return h, ok
}

func (r *Registry) Topics() []string {
	r.mu.RLock()
	list := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		list = append(list, topic)
	}
	r.mu.RUnlock()

	sort.Strings(list)
	return list
}

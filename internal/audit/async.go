package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/giftry/shophook/internal/xslog"
)

const (
	defaultBufferSize   = 256
	defaultInsertWindow = 5 * time.Second
)

var _ Recorder = (*AsyncRecorder)(nil)

// AsyncRecorder hands entries to a background worker. When the buffer is
// full the entry is dropped and counted; store errors are logged and
// swallowed.
type AsyncRecorder struct {
	store  Store
	logger *slog.Logger

	entries chan Entry
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	dropped int
}

func NewAsyncRecorder(store Store, logger *slog.Logger) *AsyncRecorder {
	return &AsyncRecorder{
		store:   store,
		logger:  logger,
		entries: make(chan Entry, defaultBufferSize),
		done:    make(chan struct{}),
	}
}

// Start launches the worker. Stop drains whatever is buffered and waits
// for the worker to exit.
func (r *AsyncRecorder) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *AsyncRecorder) Stop() {
	close(r.done)
	r.wg.Wait()
}

func (r *AsyncRecorder) Record(_ context.Context, entry Entry) {
	select {
	case r.entries <- entry:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn("audit buffer full, entry dropped",
			xslog.Topic(entry.Topic),
			xslog.Shop(entry.Shop),
			xslog.Count(dropped),
		)
	}
}

// Dropped reports how many entries were discarded due to backpressure.
func (r *AsyncRecorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *AsyncRecorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.entries:
			r.insert(entry)
		case <-r.done:
			// drain buffered entries before exiting
			for {
				select {
				case entry := <-r.entries:
					r.insert(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *AsyncRecorder) insert(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultInsertWindow)
	defer cancel()

	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.Error("failed to persist audit entry",
			xslog.Error(err),
			xslog.Topic(entry.Topic),
			xslog.Shop(entry.Shop),
		)
	}
}

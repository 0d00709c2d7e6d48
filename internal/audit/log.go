package audit

import (
	"context"
	"log/slog"

	"github.com/giftry/shophook/internal/xslog"
)

var _ Store = (*LogStore)(nil)

// LogStore writes entries to the structured log only. Used when no audit
// database is configured.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Insert(ctx context.Context, entry Entry) error {
	s.logger.InfoContext(ctx, "webhook audit",
		xslog.Topic(entry.Topic),
		xslog.Shop(entry.Shop),
		xslog.DeliveryID(entry.DeliveryID),
		slog.Bool("success", entry.Success),
		xslog.Reason(entry.Reason),
		xslog.Duration(entry.Duration),
	)
	return nil
}

func (s *LogStore) Close() error { return nil }

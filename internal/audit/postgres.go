package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS webhook_audit (
	id          BIGSERIAL PRIMARY KEY,
	topic       TEXT NOT NULL,
	shop        TEXT NOT NULL,
	delivery_id TEXT,
	success     BOOLEAN NOT NULL,
	reason      TEXT,
	duration_ms BIGINT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS webhook_audit_shop_idx ON webhook_audit (shop, received_at);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO webhook_audit (topic, shop, delivery_id, success, reason, duration_ms, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		entry.Topic,
		entry.Shop,
		entry.DeliveryID,
		entry.Success,
		entry.Reason,
		entry.Duration.Milliseconds(),
		entry.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Package audit records every webhook outcome for operators. Recording is
// fire-and-forget: a slow or failing sink must never fail the pipeline.
package audit

import (
	"context"
	"time"
)

type Entry struct {
	Topic      string        `json:"topic"`
	Shop       string        `json:"shop"`
	DeliveryID string        `json:"delivery_id,omitempty"`
	Success    bool          `json:"success"`
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"duration"`
	ReceivedAt time.Time     `json:"received_at"`
}

// Recorder accepts entries without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Store persists entries. Postgres in production, SQLite for development.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	Close() error
}

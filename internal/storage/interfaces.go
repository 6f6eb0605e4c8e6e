// Package storage defines the persistence interfaces for trade ledgers
// and metric time series, with in-memory, PostgreSQL and ClickHouse
// implementations in subpackages.
package storage

import (
	"context"

	"backsim/internal/domain"
)

// TradeStore provides access to the append-only trade ledger.
type TradeStore interface {
	// Insert adds one trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails the entire batch
	// on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByRunID retrieves all trades for a run, ordered by time ASC,
	// trade_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error)
}

// MetricStore provides access to the metric_points time series.
type MetricStore interface {
	// InsertBulk adds multiple points. Fails the entire batch on a
	// duplicate (run_id, name, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.MetricPoint) error

	// GetByRunID retrieves all points for a run, ordered by timestamp
	// ASC, name ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.MetricPoint, error)
}

package clickhouse

import (
	"context"
	"fmt"

	"backsim/internal/domain"
	"backsim/internal/storage"
)

// MetricStore implements storage.MetricStore using ClickHouse.
type MetricStore struct {
	conn *Conn
}

// NewMetricStore creates a new MetricStore.
func NewMetricStore(conn *Conn) *MetricStore {
	return &MetricStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (run_id, name, timestamp_ms). MergeTree does not enforce uniqueness,
// so duplicates are checked explicitly before the batch is sent.
func (s *MetricStore) InsertBulk(ctx context.Context, points []*domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		runID       string
		name        string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.RunID == "" || p.Name == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID, p.Name, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.RunID, p.Name, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO metric_points (
			run_id, name, timestamp_ms, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(p.RunID, p.Name, uint64(p.TimestampMs), p.Value)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by timestamp ASC, name ASC.
func (s *MetricStore) GetByRunID(ctx context.Context, runID string) ([]*domain.MetricPoint, error) {
	query := `
		SELECT run_id, name, timestamp_ms, value
		FROM metric_points
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC, name ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanMetricPoints(rows)
}

// GetByName retrieves one metric series for a run, ordered by timestamp ASC.
func (s *MetricStore) GetByName(ctx context.Context, runID, name string) ([]*domain.MetricPoint, error) {
	query := `
		SELECT run_id, name, timestamp_ms, value
		FROM metric_points
		WHERE run_id = ? AND name = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, name)
	if err != nil {
		return nil, fmt.Errorf("query by name: %w", err)
	}
	defer rows.Close()

	return scanMetricPoints(rows)
}

// exists checks if a point with the given key exists.
func (s *MetricStore) exists(ctx context.Context, runID, name string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM metric_points
		WHERE run_id = ? AND name = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, name, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanMetricPoints scans multiple rows into a slice.
func scanMetricPoints(rows chRows) ([]*domain.MetricPoint, error) {
	var points []*domain.MetricPoint

	for rows.Next() {
		var p domain.MetricPoint
		var timestampMs uint64

		if err := rows.Scan(&p.RunID, &p.Name, &timestampMs, &p.Value); err != nil {
			return nil, fmt.Errorf("scan metric point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric point rows: %w", err)
	}

	return points, nil
}

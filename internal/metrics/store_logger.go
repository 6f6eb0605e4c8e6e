package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"backsim/internal/domain"
	"backsim/internal/storage"
)

// StoreLogger buffers metric batches and persists them to a metric store
// on Flush. Buffering keeps the run's step loop free of storage latency
// and lets one bulk insert carry a whole run.
type StoreLogger struct {
	store storage.MetricStore

	mu     sync.Mutex
	points []*domain.MetricPoint
}

// NewStoreLogger creates a logger writing to the given store.
func NewStoreLogger(store storage.MetricStore) *StoreLogger {
	return &StoreLogger{store: store}
}

// Log buffers one batch. Metric names are sorted so the persisted order
// is deterministic.
func (l *StoreLogger) Log(results map[string]float64, t time.Time, runID string) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		l.points = append(l.points, &domain.MetricPoint{
			RunID:       runID,
			Name:        name,
			TimestampMs: t.UnixMilli(),
			Value:       results[name],
		})
	}
}

// Flush persists all buffered points and clears the buffer.
func (l *StoreLogger) Flush(ctx context.Context) error {
	l.mu.Lock()
	points := l.points
	l.points = nil
	l.mu.Unlock()

	if len(points) == 0 {
		return nil
	}
	return l.store.InsertBulk(ctx, points)
}

var _ Logger = (*StoreLogger)(nil)

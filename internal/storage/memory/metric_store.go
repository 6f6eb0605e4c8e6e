package memory

import (
	"context"
	"sort"
	"sync"

	"backsim/internal/domain"
	"backsim/internal/storage"
)

type metricKey struct {
	runID       string
	name        string
	timestampMs int64
}

// MetricStore is an in-memory implementation of storage.MetricStore.
type MetricStore struct {
	mu   sync.RWMutex
	data map[metricKey]*domain.MetricPoint
}

// NewMetricStore creates an empty in-memory metric store.
func NewMetricStore() *MetricStore {
	return &MetricStore{data: make(map[metricKey]*domain.MetricPoint)}
}

// InsertBulk adds multiple points. Fails the entire batch on a duplicate
// (run_id, name, timestamp_ms), existing or intra-batch.
func (s *MetricStore) InsertBulk(_ context.Context, points []*domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[metricKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" || p.Name == "" {
			return storage.ErrInvalidInput
		}
		k := metricKey{p.RunID, p.Name, p.TimestampMs}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}
	for _, p := range points {
		cp := *p
		s.data[metricKey{p.RunID, p.Name, p.TimestampMs}] = &cp
	}
	return nil
}

// GetByRunID retrieves all points for a run, ordered by timestamp ASC,
// name ASC.
func (s *MetricStore) GetByRunID(_ context.Context, runID string) ([]*domain.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.MetricPoint
	for _, p := range s.data {
		if p.RunID == runID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampMs != out[j].TimestampMs {
			return out[i].TimestampMs < out[j].TimestampMs
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

var _ storage.MetricStore = (*MetricStore)(nil)

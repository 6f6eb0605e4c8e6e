// Package policy converts trading signals into concrete, sized,
// risk-checked orders.
package policy

import (
	"backsim/internal/domain"
)

// Policy turns one event's signals into orders under account constraints.
// Act is invoked once per step with the full signal list, in stable order.
// The metrics sink is owned by the caller; use NopSink to discard.
type Policy interface {
	Act(signals []domain.Signal, acct *domain.Account, event *domain.Event, sink MetricsSink) []*domain.Order
	Reset()
}

// MetricsSink records per-call policy counters.
type MetricsSink interface {
	Record(name string, value float64)
}

// NopSink discards all records. It is the default sink.
type NopSink struct{}

// Record does nothing.
func (NopSink) Record(string, float64) {}

// MapSink accumulates records into a map, summing repeated names.
type MapSink map[string]float64

// Record adds value under name.
func (m MapSink) Record(name string, value float64) {
	m[name] += value
}

var (
	_ MetricsSink = NopSink{}
	_ MetricsSink = MapSink{}
)

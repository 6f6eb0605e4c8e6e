package domain

// MetricPoint is one named metric observation for a run at a point in
// event time. Corresponds to the metric_points time-series table.
type MetricPoint struct {
	RunID       string
	Name        string
	TimestampMs int64
	Value       float64
}

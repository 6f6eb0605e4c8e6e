package domain

import (
	"fmt"
	"time"
)

// Timeframe is a half-open time interval [Start, End), with an optional
// inclusive-end variant. The zero value is the infinite timeframe.
type Timeframe struct {
	Start     time.Time
	End       time.Time
	Inclusive bool
}

// NewTimeframe creates a half-open timeframe [start, end).
func NewTimeframe(start, end time.Time) Timeframe {
	return Timeframe{Start: start, End: end}
}

// InclusiveTimeframe creates a closed timeframe [start, end].
func InclusiveTimeframe(start, end time.Time) Timeframe {
	return Timeframe{Start: start, End: end, Inclusive: true}
}

// InfiniteTimeframe returns the timeframe containing all instants.
func InfiniteTimeframe() Timeframe {
	return Timeframe{}
}

// EmptyTimeframe returns a timeframe containing no instant.
func EmptyTimeframe() Timeframe {
	t := time.Unix(0, 0).UTC()
	return Timeframe{Start: t, End: t}
}

// Infinite reports whether the timeframe is unbounded.
func (tf Timeframe) Infinite() bool {
	return tf.Start.IsZero() && tf.End.IsZero()
}

// Empty reports whether the timeframe contains no instant.
func (tf Timeframe) Empty() bool {
	if tf.Infinite() {
		return false
	}
	if tf.Inclusive {
		return tf.End.Before(tf.Start)
	}
	return !tf.End.After(tf.Start)
}

// Contains reports whether t falls within the timeframe.
func (tf Timeframe) Contains(t time.Time) bool {
	if tf.Infinite() {
		return true
	}
	if !tf.Start.IsZero() && t.Before(tf.Start) {
		return false
	}
	if tf.End.IsZero() {
		return true
	}
	if tf.Inclusive {
		return !t.After(tf.End)
	}
	return t.Before(tf.End)
}

// Duration returns End minus Start, zero for the infinite timeframe.
func (tf Timeframe) Duration() time.Duration {
	if tf.Infinite() {
		return 0
	}
	return tf.End.Sub(tf.Start)
}

// String renders the timeframe using RFC 3339 bounds.
func (tf Timeframe) String() string {
	if tf.Infinite() {
		return "[-inf, +inf)"
	}
	closing := ")"
	if tf.Inclusive {
		closing = "]"
	}
	return fmt.Sprintf("[%s, %s%s", tf.Start.Format(time.RFC3339), tf.End.Format(time.RFC3339), closing)
}

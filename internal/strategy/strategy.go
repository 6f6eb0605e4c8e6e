// Package strategy defines the signal-generating side of a run.
package strategy

import (
	"errors"

	"backsim/internal/domain"
)

// ErrInsufficientData reports that an indicator needs a longer warm-up
// window than currently buffered. It is recoverable: the run skips the
// step and retries on the next event. It must never abort a run.
var ErrInsufficientData = errors.New("insufficient data for indicator warm-up")

// Strategy produces signals from events. Generate is a function of the
// event and the strategy's internal state only; Reset restores the
// freshly-constructed state so one configuration can drive many runs.
type Strategy interface {
	Generate(event *domain.Event) ([]domain.Signal, error)
	Reset()
	ID() string
}

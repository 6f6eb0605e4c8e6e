package strategy

import (
	"fmt"
	"sort"

	"backsim/internal/domain"
)

// EMACrossStrategy signals on exponential-moving-average crossovers of
// bar closes: a buy when the fast average crosses above the slow one, a
// sell when it crosses below. State is tracked per asset.
type EMACrossStrategy struct {
	Fast int
	Slow int

	state map[domain.Asset]*emaState
}

type emaState struct {
	fast  float64
	slow  float64
	count int
	above bool
}

// NewEMACrossStrategy creates a crossover strategy with the given
// periods. Fast must be shorter than slow.
func NewEMACrossStrategy(fast, slow int) *EMACrossStrategy {
	return &EMACrossStrategy{
		Fast:  fast,
		Slow:  slow,
		state: make(map[domain.Asset]*emaState),
	}
}

// ID returns the strategy identifier including parameters.
func (s *EMACrossStrategy) ID() string {
	return fmt.Sprintf("EMA_CROSS_%d_%d", s.Fast, s.Slow)
}

// Generate updates the averages from the event's bar closes and emits a
// signal per asset whose fast average crossed the slow one. Assets still
// warming up produce no signal.
func (s *EMACrossStrategy) Generate(event *domain.Event) ([]domain.Signal, error) {
	// Stable asset order keeps runs deterministic.
	assets := event.Assets()
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })

	var signals []domain.Signal
	for _, asset := range assets {
		bar, ok := event.PriceBar(asset)
		if !ok {
			continue
		}
		price := bar.Close.InexactFloat64()

		st, ok := s.state[asset]
		if !ok {
			st = &emaState{fast: price, slow: price}
			s.state[asset] = st
		}
		st.fast = ema(st.fast, price, s.Fast)
		st.slow = ema(st.slow, price, s.Slow)
		st.count++

		if st.count < s.Slow {
			continue
		}

		above := st.fast > st.slow
		if st.count == s.Slow {
			// First fully warmed observation sets the baseline without
			// signalling.
			st.above = above
			continue
		}
		if above != st.above {
			st.above = above
			rating := 1.0
			if !above {
				rating = -1.0
			}
			signals = append(signals, domain.NewSignal(asset, rating))
		}
	}
	return signals, nil
}

// Reset drops all per-asset state.
func (s *EMACrossStrategy) Reset() {
	s.state = make(map[domain.Asset]*emaState)
}

func ema(prev, price float64, period int) float64 {
	if period <= 1 {
		return price
	}
	alpha := 2.0 / (float64(period) + 1.0)
	return alpha*price + (1-alpha)*prev
}

var _ Strategy = (*EMACrossStrategy)(nil)

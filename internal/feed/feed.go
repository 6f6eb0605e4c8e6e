package feed

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"backsim/internal/domain"
)

// ErrEventOrder is returned when a feed is asked to carry events that are
// not in non-decreasing time order.
var ErrEventOrder = errors.New("events must be added in non-decreasing time order")

// Feed is a source of time-ordered market events. Play pushes events to
// the channel strictly in non-decreasing timestamp order and closes the
// channel when the stream ends. Feeds must be safe for concurrent replay
// by multiple runs.
type Feed interface {
	Play(ctx context.Context, ch *EventChannel) error
}

// HistoricFeed replays an in-memory series of events. The event slice is
// read-only after construction, so one feed can back many concurrent runs.
type HistoricFeed struct {
	events []*domain.Event
}

// NewHistoricFeed creates an empty historic feed.
func NewHistoricFeed() *HistoricFeed {
	return &HistoricFeed{}
}

// Add appends an event. Events must arrive in non-decreasing time order.
func (f *HistoricFeed) Add(event *domain.Event) error {
	if n := len(f.events); n > 0 && event.Time.Before(f.events[n-1].Time) {
		return ErrEventOrder
	}
	f.events = append(f.events, event)
	return nil
}

// AddBarSeries appends one event per bar for a single asset, starting at
// start and spaced by interval. Bars merge into existing events that share
// the exact timestamp.
func (f *HistoricFeed) AddBarSeries(asset domain.Asset, start time.Time, interval time.Duration, bars []domain.Bar) error {
	merged := make(map[int64]*domain.Event, len(f.events))
	for _, e := range f.events {
		merged[e.Time.UnixNano()] = e
	}
	for i, bar := range bars {
		t := start.Add(time.Duration(i) * interval)
		if e, ok := merged[t.UnixNano()]; ok {
			e.Actions[asset] = bar
			continue
		}
		e := domain.NewEvent(t, map[domain.Asset]domain.PriceAction{asset: bar})
		f.events = append(f.events, e)
		merged[t.UnixNano()] = e
	}
	sort.SliceStable(f.events, func(i, j int) bool {
		return f.events[i].Time.Before(f.events[j].Time)
	})
	return nil
}

// Timeframe returns the interval spanned by the feed's events.
func (f *HistoricFeed) Timeframe() domain.Timeframe {
	if len(f.events) == 0 {
		return domain.EmptyTimeframe()
	}
	return domain.InclusiveTimeframe(f.events[0].Time, f.events[len(f.events)-1].Time)
}

// Len returns the number of events in the feed.
func (f *HistoricFeed) Len() int { return len(f.events) }

// Play replays all events in order and closes the channel. A cancelled
// context or a closed channel stops the replay early.
func (f *HistoricFeed) Play(ctx context.Context, ch *EventChannel) error {
	defer ch.Close()

	for _, event := range f.events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := ch.Send(event); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

var _ Feed = (*HistoricFeed)(nil)

// RandomWalkFeed generates a deterministic pseudo-random bar walk per
// asset from a fixed seed. Useful for demos and for determinism tests:
// the same seed always produces the same event series.
type RandomWalkFeed struct {
	assets   []domain.Asset
	start    time.Time
	interval time.Duration
	steps    int
	seed     uint64
	price    decimal.Decimal
}

// NewRandomWalkFeed creates a walk of the given number of steps starting
// at price 100.
func NewRandomWalkFeed(assets []domain.Asset, start time.Time, interval time.Duration, steps int, seed uint64) *RandomWalkFeed {
	return &RandomWalkFeed{
		assets:   assets,
		start:    start,
		interval: interval,
		steps:    steps,
		seed:     seed,
		price:    decimal.NewFromInt(100),
	}
}

// Play generates and pushes the walk, then closes the channel.
func (f *RandomWalkFeed) Play(ctx context.Context, ch *EventChannel) error {
	defer ch.Close()

	// splitmix64 keeps the walk reproducible without pulling in a
	// stateful rand source that other runs could perturb.
	state := f.seed
	next := func() uint64 {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		return z ^ (z >> 31)
	}

	prices := make(map[domain.Asset]decimal.Decimal, len(f.assets))
	for _, a := range f.assets {
		prices[a] = f.price
	}

	for i := 0; i < f.steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := f.start.Add(time.Duration(i) * f.interval)
		actions := make(map[domain.Asset]domain.PriceAction, len(f.assets))
		for _, a := range f.assets {
			open := prices[a]
			// Step in the range [-1%, +1%] of the current price.
			bps := int64(next()%201) - 100
			move := open.Mul(decimal.New(bps, -4))
			cls := open.Add(move)
			if !cls.IsPositive() {
				cls = open
			}
			high := decimal.Max(open, cls)
			low := decimal.Min(open, cls)
			actions[a] = domain.Bar{Open: open, High: high, Low: low, Close: cls}
			prices[a] = cls
		}

		if err := ch.Send(domain.NewEvent(t, actions)); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

var _ Feed = (*RandomWalkFeed)(nil)

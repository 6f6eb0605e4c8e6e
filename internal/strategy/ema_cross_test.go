package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"backsim/internal/domain"
)

var testAsset = domain.NewAsset("TEST", "USD")

func barEvent(sec int64, price float64) *domain.Event {
	p := decimal.NewFromFloat(price)
	return domain.NewEvent(time.Unix(sec, 0).UTC(), map[domain.Asset]domain.PriceAction{
		testAsset: domain.Bar{Open: p, High: p, Low: p, Close: p},
	})
}

func TestEMACrossWarmUpSilence(t *testing.T) {
	s := NewEMACrossStrategy(3, 8)

	for i := 0; i < 8; i++ {
		signals, err := s.Generate(barEvent(int64(i), 100))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(signals) != 0 {
			t.Fatalf("event %d: no signal expected during warm-up", i)
		}
	}
}

func TestEMACrossSignalsOnCross(t *testing.T) {
	s := NewEMACrossStrategy(3, 8)

	// Flat warm-up, then a sustained rally: the fast average crosses
	// above the slow one exactly once.
	prices := []float64{100, 100, 100, 100, 100, 100, 100, 100, 101, 103, 106, 110, 115}
	var buys, sells int
	for i, p := range prices {
		signals, err := s.Generate(barEvent(int64(i), p))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		for _, sig := range signals {
			if sig.Direction() > 0 {
				buys++
			} else {
				sells++
			}
		}
	}
	if buys != 1 {
		t.Fatalf("expected exactly one buy crossover, got %d", buys)
	}
	if sells != 0 {
		t.Fatalf("expected no sell, got %d", sells)
	}
}

func TestEMACrossReset(t *testing.T) {
	s := NewEMACrossStrategy(2, 4)

	run := func() []int {
		s.Reset()
		prices := []float64{100, 100, 100, 100, 105, 112, 108, 95, 90}
		var dirs []int
		for i, p := range prices {
			signals, _ := s.Generate(barEvent(int64(i), p))
			for _, sig := range signals {
				dirs = append(dirs, sig.Direction())
			}
		}
		return dirs
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("reset did not restore fresh state: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("signal %d diverged after reset", i)
		}
	}
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(Config{Type: TypeEMACross, FastPeriod: 5, SlowPeriod: 20})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if s.ID() != "EMA_CROSS_5_20" {
		t.Fatalf("unexpected id %s", s.ID())
	}

	if _, err := FromConfig(Config{Type: "NOPE"}); !errors.Is(err, ErrUnknownStrategyType) {
		t.Fatalf("expected ErrUnknownStrategyType, got %v", err)
	}
	if _, err := FromConfig(Config{Type: TypeEMACross, FastPeriod: 20, SlowPeriod: 5}); !errors.Is(err, ErrInvalidPeriods) {
		t.Fatalf("expected ErrInvalidPeriods, got %v", err)
	}
}

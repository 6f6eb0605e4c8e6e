package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testAsset = NewAsset("AAPL", "USD")

func TestMarketOrderValidate(t *testing.T) {
	o := NewMarketOrder(testAsset, dec("10"))
	if err := o.Validate(); err != nil {
		t.Fatalf("valid market order rejected: %v", err)
	}

	o = NewMarketOrder(testAsset, decimal.Zero)
	if err := o.Validate(); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("expected ErrZeroSize, got %v", err)
	}
}

func TestLimitOrderValidate(t *testing.T) {
	if err := NewLimitOrder(testAsset, dec("10"), dec("100")).Validate(); err != nil {
		t.Fatalf("valid limit order rejected: %v", err)
	}
	if err := NewLimitOrder(testAsset, dec("10"), decimal.Zero).Validate(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got nil/other")
	}
	if err := NewLimitOrder(testAsset, dec("10"), dec("-5")).Validate(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative limit")
	}
}

func TestTrailingStopValidate(t *testing.T) {
	if err := NewTrailingStopOrder(testAsset, dec("-10"), dec("0.05")).Validate(); err != nil {
		t.Fatalf("valid trailing stop rejected: %v", err)
	}
	for _, trail := range []string{"0", "1", "1.5", "-0.1"} {
		if err := NewTrailingStopOrder(testAsset, dec("-10"), dec(trail)).Validate(); !errors.Is(err, ErrInvalidTrail) {
			t.Fatalf("trail %s: expected ErrInvalidTrail, got %v", trail, err)
		}
	}
}

func TestBracketOrderValidate(t *testing.T) {
	entry := NewMarketOrder(testAsset, dec("10"))
	tp := NewLimitOrder(testAsset, dec("-10"), dec("120"))
	sl := NewStopOrder(testAsset, dec("-10"), dec("90"))

	if err := NewBracketOrder(entry, tp, sl).Validate(); err != nil {
		t.Fatalf("valid bracket rejected: %v", err)
	}
}

func TestBracketOrderSizeMismatch(t *testing.T) {
	entry := NewMarketOrder(testAsset, dec("10"))
	tp := NewLimitOrder(testAsset, dec("-5"), dec("120")) // not the exact negation
	sl := NewStopOrder(testAsset, dec("-10"), dec("90"))

	if err := NewBracketOrder(entry, tp, sl).Validate(); !errors.Is(err, ErrBracketSize) {
		t.Fatalf("expected ErrBracketSize, got %v", err)
	}
}

func TestBracketOrderAssetMismatch(t *testing.T) {
	other := NewAsset("MSFT", "USD")
	entry := NewMarketOrder(testAsset, dec("10"))
	tp := NewLimitOrder(testAsset, dec("-10"), dec("120"))
	sl := NewStopOrder(other, dec("-10"), dec("90"))

	if err := NewBracketOrder(entry, tp, sl).Validate(); !errors.Is(err, ErrBracketAsset) {
		t.Fatalf("expected ErrBracketAsset, got %v", err)
	}
}

func TestBracketOrderMissingLeg(t *testing.T) {
	entry := NewMarketOrder(testAsset, dec("10"))
	tp := NewLimitOrder(testAsset, dec("-10"), dec("120"))

	if err := NewBracketOrder(entry, tp, nil).Validate(); !errors.Is(err, ErrBracketNilLeg) {
		t.Fatalf("expected ErrBracketNilLeg, got %v", err)
	}
}

func TestBracketOrderLegTypes(t *testing.T) {
	entry := NewMarketOrder(testAsset, dec("10"))
	// Take-profit must be a limit, not a market order.
	tp := NewMarketOrder(testAsset, dec("-10"))
	sl := NewStopOrder(testAsset, dec("-10"), dec("90"))

	if err := NewBracketOrder(entry, tp, sl).Validate(); !errors.Is(err, ErrBracketLegType) {
		t.Fatalf("expected ErrBracketLegType, got %v", err)
	}
}

func TestOrderStatusClosed(t *testing.T) {
	closed := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired, OrderStatusRejected}
	open := []OrderStatus{OrderStatusCreated, OrderStatusAccepted, OrderStatusPartiallyFilled}

	for _, s := range closed {
		if !s.Closed() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range open {
		if s.Closed() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestBracketEntryType(t *testing.T) {
	entry := NewLimitOrder(testAsset, dec("10"), dec("95"))
	tp := NewLimitOrder(testAsset, dec("-10"), dec("120"))
	sl := NewStopOrder(testAsset, dec("-10"), dec("90"))

	b := NewBracketOrder(entry, tp, sl)
	if got := b.EntryType(); got != OrderTypeLimit {
		t.Fatalf("expected LIMIT entry type, got %s", got)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("limit-entry bracket rejected: %v", err)
	}
}

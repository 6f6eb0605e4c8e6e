package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceAction is a single point-in-time price observation for one asset.
// The concrete types are Bar, Quote and TradePrice.
type PriceAction interface {
	// RefPrice returns the reference price of the action, used whenever a
	// single representative price is needed.
	RefPrice() decimal.Decimal
}

// Bar is an OHLCV price bar.
type Bar struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// RefPrice returns the bar open. Decisions taken on a bar execute at its
// open, matching the broker's market-order convention.
func (b Bar) RefPrice() decimal.Decimal { return b.Open }

// Valid reports whether the bar carries usable, positive prices.
func (b Bar) Valid() bool {
	return b.Open.IsPositive() && b.High.IsPositive() &&
		b.Low.IsPositive() && b.Close.IsPositive() &&
		b.High.GreaterThanOrEqual(b.Low)
}

// Quote is a bid/ask observation.
type Quote struct {
	BidPrice decimal.Decimal
	BidSize  decimal.Decimal
	AskPrice decimal.Decimal
	AskSize  decimal.Decimal
}

// RefPrice returns the bid/ask midpoint.
func (q Quote) RefPrice() decimal.Decimal {
	return q.BidPrice.Add(q.AskPrice).Div(decimal.NewFromInt(2))
}

// TradePrice is a single trade print.
type TradePrice struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// RefPrice returns the trade price.
func (t TradePrice) RefPrice() decimal.Decimal { return t.Price }

// Event is a timestamped bundle of per-asset price actions. The map
// guarantees at most one action per asset. Events delivered to a run are
// strictly increasing in time; feeds are responsible for emission order.
type Event struct {
	Time    time.Time
	Actions map[Asset]PriceAction
}

// NewEvent creates an event for the given time.
func NewEvent(t time.Time, actions map[Asset]PriceAction) *Event {
	if actions == nil {
		actions = make(map[Asset]PriceAction)
	}
	return &Event{Time: t, Actions: actions}
}

// Price returns the reference price for an asset, if the event carries an
// action for it. Non-positive prices are reported as unknown.
func (e *Event) Price(asset Asset) (decimal.Decimal, bool) {
	action, ok := e.Actions[asset]
	if !ok {
		return decimal.Decimal{}, false
	}
	p := action.RefPrice()
	if !p.IsPositive() {
		return decimal.Decimal{}, false
	}
	return p, true
}

// PriceBar returns the price action for an asset as an OHLC bar. Quote and
// trade actions collapse to a flat bar at their reference price. The second
// return is false when the event has no usable price for the asset.
func (e *Event) PriceBar(asset Asset) (Bar, bool) {
	action, ok := e.Actions[asset]
	if !ok {
		return Bar{}, false
	}
	if bar, ok := action.(Bar); ok {
		if !bar.Valid() {
			return Bar{}, false
		}
		return bar, true
	}
	p := action.RefPrice()
	if !p.IsPositive() {
		return Bar{}, false
	}
	return Bar{Open: p, High: p, Low: p, Close: p}, true
}

// Assets returns the assets priced by this event, in unspecified order.
func (e *Event) Assets() []Asset {
	assets := make([]Asset, 0, len(e.Actions))
	for a := range e.Actions {
		assets = append(assets, a)
	}
	return assets
}

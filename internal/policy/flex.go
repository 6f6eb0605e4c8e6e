package policy

import (
	"github.com/shopspring/decimal"

	"backsim/internal/domain"
)

// OrderFactory builds the final order for a sized entry decision. The
// indirection lets a caller substitute limit or stop order construction
// without re-deriving the sizing logic.
type OrderFactory func(asset domain.Asset, size decimal.Decimal, event *domain.Event) *domain.Order

// MarketOrderFactory is the default order factory.
func MarketOrderFactory(asset domain.Asset, size decimal.Decimal, _ *domain.Event) *domain.Order {
	return domain.NewMarketOrder(asset, size)
}

// FlexPolicy sizes new positions as a fraction of account equity and
// enforces buying-power, shorting and one-order-per-asset constraints.
// Closing an open position is always allowed and bypasses those checks.
type FlexPolicy struct {
	// OrderPct is the fraction of equity committed per new position.
	OrderPct decimal.Decimal

	// Shorting permits entry orders with negative size.
	Shorting bool

	// OneOrderOnly skips assets that already have an open order.
	OneOrderOnly bool

	// FractionalScale is the number of decimals allowed in a size;
	// zero restricts sizes to whole contracts.
	FractionalScale int32

	// OrderFactory builds entry orders; MarketOrderFactory when nil.
	OrderFactory OrderFactory
}

// NewFlexPolicy returns a policy with the usual defaults: 1% of equity
// per position, no shorting, one order per asset, whole contracts.
func NewFlexPolicy() *FlexPolicy {
	return &FlexPolicy{
		OrderPct:     decimal.RequireFromString("0.01"),
		OneOrderOnly: true,
	}
}

// Act walks the signals in the order received and emits at most one order
// per signal. Buying power is decremented as a running total across the
// list, so sequential signals within one step cannot jointly overdraw it.
func (p *FlexPolicy) Act(signals []domain.Signal, acct *domain.Account, event *domain.Event, sink MetricsSink) []*domain.Order {
	if sink == nil {
		sink = NopSink{}
	}
	sink.Record("policy.signals", float64(len(signals)))

	factory := p.OrderFactory
	if factory == nil {
		factory = MarketOrderFactory
	}

	var orders []*domain.Order
	equity := acct.Equity()
	remaining := acct.BuyingPower

	for _, signal := range signals {
		asset := signal.Asset
		direction := signal.Direction()
		if direction == 0 {
			continue
		}
		if p.OneOrderOnly && len(acct.OpenOrdersFor(asset)) > 0 {
			continue
		}
		price, ok := event.Price(asset)
		if !ok {
			continue
		}

		position := acct.PositionSize(asset)

		// Reducing an open position to flat ignores buying power and
		// shorting restrictions: closing risk is always allowed.
		if !position.IsZero() && position.Sign() != direction && signal.Exit() {
			order := factory(asset, position.Neg(), event)
			orders = append(orders, order)
			continue
		}

		if !position.IsZero() {
			// Same direction as the open position: no averaging up.
			continue
		}
		if !signal.Entry() {
			continue
		}

		amount := equity.Mul(p.OrderPct)
		size := sizeFor(amount, price, p.FractionalScale, direction)
		if size.IsZero() {
			continue
		}
		if size.Sign() < 0 && !p.Shorting {
			continue
		}

		exposure := size.Abs().Mul(price).Mul(decimal.NewFromInt(asset.ContractMultiplier()))
		if exposure.GreaterThan(remaining) {
			continue
		}
		remaining = remaining.Sub(exposure)

		orders = append(orders, factory(asset, size, event))
	}

	sink.Record("policy.orders", float64(len(orders)))
	return orders
}

// Reset clears internal state. FlexPolicy keeps none, but the method is
// part of the per-run lifecycle contract.
func (p *FlexPolicy) Reset() {}

// sizeFor computes floor(amount/price, scale) in the signal direction.
func sizeFor(amount, price decimal.Decimal, scale int32, direction int) decimal.Decimal {
	if !price.IsPositive() || !amount.IsPositive() {
		return decimal.Zero
	}
	size := amount.Div(price).RoundDown(scale)
	if direction < 0 {
		return size.Neg()
	}
	return size
}

var _ Policy = (*FlexPolicy)(nil)

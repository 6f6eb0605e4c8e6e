package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	aapl = domain.NewAsset("AAPL", "USD")
	msft = domain.NewAsset("MSFT", "USD")
)

func accountWith(cash string) *domain.Account {
	acct := domain.NewAccount("USD", dec(cash))
	acct.BuyingPower = dec(cash)
	return acct
}

func eventWithPrice(asset domain.Asset, price string) *domain.Event {
	p := dec(price)
	return domain.NewEvent(time.Now(), map[domain.Asset]domain.PriceAction{
		asset: domain.Bar{Open: p, High: p, Low: p, Close: p},
	})
}

func TestFlexPolicySizing(t *testing.T) {
	// equity=100000, orderPct=0.01, price=50 -> floor(1000/50) = 20.
	policy := NewFlexPolicy()
	acct := accountWith("100000")
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Size.Equal(dec("20")), "got size %s", orders[0].Size)
	assert.Equal(t, domain.OrderTypeMarket, orders[0].Type)
}

func TestFlexPolicyZeroEquity(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("0")
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	assert.Empty(t, orders, "zero equity must resolve to a zero size and no order")
}

func TestFlexPolicyShortingDisabled(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("100000")
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, -1)}, acct, event, nil)
	assert.Empty(t, orders, "short entries must be skipped when shorting is disabled")

	policy.Shorting = true
	orders = policy.Act([]domain.Signal{domain.NewSignal(aapl, -1)}, acct, event, nil)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Size.Equal(dec("-20")))
}

func TestFlexPolicyRunningBuyingPower(t *testing.T) {
	// Two signals in one step must not jointly overdraw buying power.
	policy := NewFlexPolicy()
	policy.OrderPct = dec("0.6")

	acct := accountWith("1000")
	p := dec("10")
	event := domain.NewEvent(time.Now(), map[domain.Asset]domain.PriceAction{
		aapl: domain.Bar{Open: p, High: p, Low: p, Close: p},
		msft: domain.Bar{Open: p, High: p, Low: p, Close: p},
	})

	signals := []domain.Signal{domain.NewSignal(aapl, 1), domain.NewSignal(msft, 1)}
	orders := policy.Act(signals, acct, event, nil)

	// First signal reserves 600 of the 1000 buying power; the second
	// signal's 600 no longer fits.
	require.Len(t, orders, 1)
	assert.Equal(t, aapl, orders[0].Asset)

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Size.Abs().Mul(p))
	}
	assert.True(t, total.LessThanOrEqual(acct.BuyingPower), "orders exceed buying power")
}

func TestFlexPolicyClosingBypassesConstraints(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("0") // no buying power at all
	acct.Positions[aapl] = domain.Position{Asset: aapl, Size: dec("30"), AvgPrice: dec("40"), MarkPrice: dec("50")}
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, -1)}, acct, event, nil)
	require.Len(t, orders, 1, "closing an open position must always be allowed")
	assert.True(t, orders[0].Size.Equal(dec("-30")), "closing order must negate the position exactly")
}

func TestFlexPolicyNoAveragingUp(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("100000")
	acct.Positions[aapl] = domain.Position{Asset: aapl, Size: dec("10"), AvgPrice: dec("45"), MarkPrice: dec("50")}
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	assert.Empty(t, orders, "a same-direction open position must not be added to")
}

func TestFlexPolicyOneOrderOnly(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("100000")
	open := domain.NewMarketOrder(aapl, dec("5"))
	open.ID = "o-1"
	open.Status = domain.OrderStatusAccepted
	acct.Orders[open.ID] = open
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	assert.Empty(t, orders, "an asset with an open order must be skipped")

	policy.OneOrderOnly = false
	orders = policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	assert.Len(t, orders, 1)
}

func TestFlexPolicyUnpricedAssetSkipped(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("100000")
	event := eventWithPrice(msft, "50") // no price for aapl

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	assert.Empty(t, orders)
}

func TestFlexPolicyFractionalScale(t *testing.T) {
	policy := NewFlexPolicy()
	policy.FractionalScale = 4
	acct := accountWith("100")
	acct.BuyingPower = dec("100")
	policy.OrderPct = dec("0.5")
	event := eventWithPrice(aapl, "30000")

	// floor(50/30000, 4) = 0.0016
	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Size.Equal(dec("0.0016")), "got %s", orders[0].Size)
}

func TestFlexPolicyMetricsSink(t *testing.T) {
	policy := NewFlexPolicy()
	acct := accountWith("100000")
	event := eventWithPrice(aapl, "50")
	sink := MapSink{}

	policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, sink)
	assert.Equal(t, 1.0, sink["policy.signals"])
	assert.Equal(t, 1.0, sink["policy.orders"])
}

func TestFlexPolicyCustomOrderFactory(t *testing.T) {
	policy := NewFlexPolicy()
	policy.OrderFactory = func(asset domain.Asset, size decimal.Decimal, event *domain.Event) *domain.Order {
		price, _ := event.Price(asset)
		return domain.NewLimitOrder(asset, size, price)
	}
	acct := accountWith("100000")
	event := eventWithPrice(aapl, "50")

	orders := policy.Act([]domain.Signal{domain.NewSignal(aapl, 1)}, acct, event, nil)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderTypeLimit, orders[0].Type)
	assert.True(t, orders[0].Limit.Equal(dec("50")))
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account aggregates cash, positions and open orders for one run. It is
// mutated exclusively by the execution engine during a step and read by
// policy and strategy. An account lives exactly as long as its run; it is
// never shared across runs.
type Account struct {
	BaseCurrency string

	// Cash holds one balance per currency.
	Cash map[string]decimal.Decimal

	// Positions holds at most one open position per asset.
	Positions map[Asset]Position

	// Orders is the open-order set, keyed by order id. Insertion order is
	// maintained by the execution engine, not by this map.
	Orders map[string]*Order

	// BuyingPower is derived by the account model after every sync.
	BuyingPower decimal.Decimal

	// LastUpdate is the event time of the latest broker sync.
	LastUpdate time.Time
}

// NewAccount creates an account with an initial deposit in the base
// currency.
func NewAccount(baseCurrency string, deposit decimal.Decimal) *Account {
	return &Account{
		BaseCurrency: baseCurrency,
		Cash:         map[string]decimal.Decimal{baseCurrency: deposit},
		Positions:    make(map[Asset]Position),
		Orders:       make(map[string]*Order),
	}
}

// CashBalance returns the balance for a currency, zero when absent.
func (a *Account) CashBalance(currency string) decimal.Decimal {
	return a.Cash[currency]
}

// PositionSize returns the signed position size for an asset, zero when
// flat.
func (a *Account) PositionSize(asset Asset) decimal.Decimal {
	return a.Positions[asset].Size
}

// OpenOrdersFor returns the open orders for an asset.
func (a *Account) OpenOrdersFor(asset Asset) []*Order {
	var orders []*Order
	for _, o := range a.Orders {
		if o.Asset == asset {
			orders = append(orders, o)
		}
	}
	return orders
}

// Equity returns cash plus position market value, in the base currency.
// Positions denominated in other currencies are excluded; the engine does
// not model currency conversion.
func (a *Account) Equity() decimal.Decimal {
	equity := a.Cash[a.BaseCurrency]
	for _, p := range a.Positions {
		if p.Asset.Currency == a.BaseCurrency {
			equity = equity.Add(p.Value())
		}
	}
	return equity
}

// UnrealizedPNL returns the open profit over all positions in the base
// currency.
func (a *Account) UnrealizedPNL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Positions {
		if p.Asset.Currency == a.BaseCurrency {
			total = total.Add(p.UnrealizedPNL())
		}
	}
	return total
}

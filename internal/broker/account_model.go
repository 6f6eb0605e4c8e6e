package broker

import (
	"github.com/shopspring/decimal"

	"backsim/internal/domain"
)

// AccountModel derives the buying power of an account from its current
// positions, cash and open orders. Implementations must be pure functions
// of the account state.
type AccountModel interface {
	BuyingPower(acct *domain.Account) decimal.Decimal
}

// CashAccount computes buying power as available base-currency cash minus
// the notional already reserved by open entry orders.
type CashAccount struct{}

// BuyingPower returns cash minus reserved open-order exposure, floored at
// zero.
func (CashAccount) BuyingPower(acct *domain.Account) decimal.Decimal {
	bp := acct.CashBalance(acct.BaseCurrency).Sub(reservedExposure(acct))
	if bp.IsNegative() {
		return decimal.Zero
	}
	return bp
}

// MarginAccount computes buying power as leveraged equity minus the
// maintenance requirement over open exposure. Once equity falls below
// MinEquity the model reports zero buying power, so policies can place
// closing orders only.
type MarginAccount struct {
	// Leverage multiplies equity into gross buying power, e.g. 2 for a
	// standard margin account.
	Leverage decimal.Decimal

	// MaintenanceMargin is the fraction of open exposure that must stay
	// covered by equity.
	MaintenanceMargin decimal.Decimal

	// MinEquity is the equity floor below which no new exposure is
	// allowed.
	MinEquity decimal.Decimal
}

// NewMarginAccount creates a margin model with the usual defaults:
// 2x leverage, 25% maintenance margin, zero minimum equity.
func NewMarginAccount() MarginAccount {
	return MarginAccount{
		Leverage:          decimal.NewFromInt(2),
		MaintenanceMargin: decimal.RequireFromString("0.25"),
	}
}

// BuyingPower returns equity*leverage minus maintenance over open
// exposure and reserved orders, floored at zero.
func (m MarginAccount) BuyingPower(acct *domain.Account) decimal.Decimal {
	equity := acct.Equity()
	if equity.LessThan(m.MinEquity) {
		return decimal.Zero
	}

	exposure := decimal.Zero
	for _, p := range acct.Positions {
		if p.Asset.Currency == acct.BaseCurrency {
			exposure = exposure.Add(p.Exposure())
		}
	}

	leverage := m.Leverage
	if !leverage.IsPositive() {
		leverage = decimal.NewFromInt(1)
	}

	bp := equity.Mul(leverage).
		Sub(exposure.Mul(m.MaintenanceMargin)).
		Sub(reservedExposure(acct))
	if bp.IsNegative() {
		return decimal.Zero
	}
	return bp
}

// reservedExposure estimates the notional committed to open entry orders.
// Trigger prices are used when present, the position mark otherwise;
// orders whose price cannot be resolved reserve nothing yet.
func reservedExposure(acct *domain.Account) decimal.Decimal {
	reserved := decimal.Zero
	for _, o := range acct.Orders {
		if o.Asset.Currency != acct.BaseCurrency {
			continue
		}
		// Orders that reduce an open position do not consume buying
		// power.
		pos := acct.Positions[o.Asset]
		if !pos.Size.IsZero() && pos.Size.Sign() != o.Size.Sign() {
			continue
		}

		price := orderReferencePrice(o, pos)
		if !price.IsPositive() {
			continue
		}
		notional := o.Size.Abs().Mul(price).Mul(decimal.NewFromInt(o.Asset.ContractMultiplier()))
		reserved = reserved.Add(notional)
	}
	return reserved
}

func orderReferencePrice(o *domain.Order, pos domain.Position) decimal.Decimal {
	switch {
	case o.Limit.IsPositive():
		return o.Limit
	case o.Stop.IsPositive():
		return o.Stop
	default:
		return pos.MarkPrice
	}
}

var (
	_ AccountModel = CashAccount{}
	_ AccountModel = MarginAccount{}
)

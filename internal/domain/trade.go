package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution is a single fill of an order. Immutable once produced.
type Execution struct {
	OrderID string
	Asset   Asset
	Size    decimal.Decimal
	Price   decimal.Decimal
	Time    time.Time
}

// Value returns the signed notional of the execution, including the
// contract multiplier.
func (e Execution) Value() decimal.Decimal {
	return e.Size.Mul(e.Price).Mul(decimal.NewFromInt(e.Asset.ContractMultiplier()))
}

// Trade is the realized ledger entry derived from one execution against a
// position. The trade ledger is append-only.
type Trade struct {
	TradeID string
	RunID   string
	OrderID string
	Asset   Asset

	Size  decimal.Decimal
	Price decimal.Decimal
	Fee   decimal.Decimal

	// RealizedPNL is the profit realized by this trade against the average
	// cost basis of the position it reduced. Zero for opening trades.
	RealizedPNL decimal.Decimal

	Time time.Time
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a signed holding in one asset with its average cost basis.
// One position per asset per account; flat positions are removed.
type Position struct {
	Asset    Asset
	Size     decimal.Decimal
	AvgPrice decimal.Decimal

	// MarkPrice is the last known price, updated by the execution engine
	// on every event that prices the asset.
	MarkPrice decimal.Decimal
	MarkTime  time.Time
}

// Long reports whether the position is long.
func (p Position) Long() bool { return p.Size.Sign() > 0 }

// Short reports whether the position is short.
func (p Position) Short() bool { return p.Size.Sign() < 0 }

// Value returns the signed market value at the mark price.
func (p Position) Value() decimal.Decimal {
	return p.Size.Mul(p.MarkPrice).Mul(decimal.NewFromInt(p.Asset.ContractMultiplier()))
}

// Exposure returns the absolute market value at the mark price.
func (p Position) Exposure() decimal.Decimal {
	return p.Value().Abs()
}

// UnrealizedPNL returns the open profit against the average cost basis.
func (p Position) UnrealizedPNL() decimal.Decimal {
	return p.MarkPrice.Sub(p.AvgPrice).Mul(p.Size).Mul(decimal.NewFromInt(p.Asset.ContractMultiplier()))
}

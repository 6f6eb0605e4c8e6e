package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"backsim/internal/domain"
)

// FeeModel maps an execution and the trade history to a monetary fee.
// Implementations must be pure functions of their inputs so replays stay
// reproducible.
type FeeModel interface {
	Calculate(exec domain.Execution, t time.Time, trades []domain.Trade) decimal.Decimal
}

// PercentageFee charges a fraction of the executed notional. This is the
// default fee convention.
type PercentageFee struct {
	// Rate is the fee fraction, e.g. 0.001 for 10 bps.
	Rate decimal.Decimal
}

// NewPercentageFee creates a percentage-of-notional fee model.
func NewPercentageFee(rate decimal.Decimal) PercentageFee {
	return PercentageFee{Rate: rate}
}

// Calculate returns rate times absolute notional.
func (f PercentageFee) Calculate(exec domain.Execution, _ time.Time, _ []domain.Trade) decimal.Decimal {
	return exec.Value().Abs().Mul(f.Rate)
}

// FlatFee charges a fixed amount per execution.
type FlatFee struct {
	Amount decimal.Decimal
}

// Calculate returns the flat amount.
func (f FlatFee) Calculate(_ domain.Execution, _ time.Time, _ []domain.Trade) decimal.Decimal {
	return f.Amount
}

// PerUnitFee charges a fixed amount per executed unit.
type PerUnitFee struct {
	PerUnit decimal.Decimal
}

// Calculate returns per-unit price times absolute size.
func (f PerUnitFee) Calculate(exec domain.Execution, _ time.Time, _ []domain.Trade) decimal.Decimal {
	return exec.Size.Abs().Mul(f.PerUnit)
}

// CompositeFee sums the fees of its component models, for tiered or
// combined schedules.
type CompositeFee struct {
	Models []FeeModel
}

// Calculate returns the sum over all component models.
func (f CompositeFee) Calculate(exec domain.Execution, t time.Time, trades []domain.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, m := range f.Models {
		total = total.Add(m.Calculate(exec, t, trades))
	}
	return total
}

// NoFee charges nothing.
type NoFee struct{}

// Calculate returns zero.
func (NoFee) Calculate(_ domain.Execution, _ time.Time, _ []domain.Trade) decimal.Decimal {
	return decimal.Zero
}

var (
	_ FeeModel = PercentageFee{}
	_ FeeModel = FlatFee{}
	_ FeeModel = PerUnitFee{}
	_ FeeModel = CompositeFee{}
	_ FeeModel = NoFee{}
)

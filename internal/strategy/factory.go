package strategy

import (
	"errors"
	"fmt"
)

// Factory errors.
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrInvalidPeriods      = errors.New("fast period must be positive and shorter than slow period")
)

// Strategy type names accepted by FromConfig.
const (
	TypeEMACross = "EMA_CROSS"
)

// Config selects and parameterizes a strategy.
type Config struct {
	Type string

	// FastPeriod and SlowPeriod apply to EMA_CROSS.
	FastPeriod int
	SlowPeriod int
}

// FromConfig creates a Strategy from a config, validating required
// parameters per type.
func FromConfig(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case TypeEMACross:
		if cfg.FastPeriod <= 0 || cfg.FastPeriod >= cfg.SlowPeriod {
			return nil, fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidPeriods, cfg.FastPeriod, cfg.SlowPeriod)
		}
		return NewEMACrossStrategy(cfg.FastPeriod, cfg.SlowPeriod), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

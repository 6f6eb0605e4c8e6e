package domain

import "fmt"

// AssetType classifies the kind of instrument an asset represents.
type AssetType string

// Asset type constants.
const (
	AssetTypeEquity AssetType = "EQUITY"
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeForex  AssetType = "FOREX"
	AssetTypeFuture AssetType = "FUTURE"
)

// Asset identifies a tradable instrument. Assets are immutable values with
// value equality, and are used as map keys throughout the engine.
type Asset struct {
	Symbol   string
	Type     AssetType
	Currency string

	// Multiplier is the contract multiplier applied to notional values.
	// Zero is treated as 1 by ContractMultiplier.
	Multiplier int64
}

// NewAsset creates an equity-style asset denominated in the given currency.
func NewAsset(symbol, currency string) Asset {
	return Asset{Symbol: symbol, Type: AssetTypeEquity, Currency: currency, Multiplier: 1}
}

// NewCryptoAsset creates a crypto asset denominated in the given currency.
func NewCryptoAsset(symbol, currency string) Asset {
	return Asset{Symbol: symbol, Type: AssetTypeCrypto, Currency: currency, Multiplier: 1}
}

// ContractMultiplier returns the effective contract multiplier.
func (a Asset) ContractMultiplier() int64 {
	if a.Multiplier <= 0 {
		return 1
	}
	return a.Multiplier
}

// String returns a human readable identifier.
func (a Asset) String() string {
	return fmt.Sprintf("%s/%s", a.Symbol, a.Currency)
}

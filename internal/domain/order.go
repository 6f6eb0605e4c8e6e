package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Order validation errors. Validation failures surface as RejectedOrder
// outcomes at the broker, never as run-fatal faults.
var (
	ErrZeroSize         = errors.New("order size must be non-zero")
	ErrInvalidPrice     = errors.New("order price must be positive")
	ErrInvalidTrail     = errors.New("trail percentage must be in (0, 1)")
	ErrBracketAsset     = errors.New("bracket legs must share the entry asset")
	ErrBracketSize      = errors.New("bracket leg sizes must negate the entry size")
	ErrBracketLegType   = errors.New("bracket legs must be a limit take-profit and a stop stop-loss")
	ErrBracketNilLeg    = errors.New("bracket requires entry, take-profit and stop-loss legs")
	ErrUnknownOrderType = errors.New("unknown order type")
)

// OrderType is the matching-rule variant of an order. The set is closed;
// the broker matches exhaustively over it.
type OrderType string

// Order type constants.
const (
	OrderTypeMarket       OrderType = "MARKET"
	OrderTypeLimit        OrderType = "LIMIT"
	OrderTypeStop         OrderType = "STOP"
	OrderTypeStopLimit    OrderType = "STOP_LIMIT"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP"
	OrderTypeBracket      OrderType = "BRACKET"
)

// OrderStatus is the lifecycle state of an order. Terminal states are
// final; only the execution engine mutates status.
type OrderStatus string

// Order status constants.
const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Closed reports whether the status is terminal.
func (s OrderStatus) Closed() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Order is an instruction to change a position. Size sign is the trade
// direction. Trigger fields are populated per type; Validate enforces the
// per-variant invariants.
type Order struct {
	ID     string
	Asset  Asset
	Size   decimal.Decimal
	Type   OrderType
	Status OrderStatus

	// Limit is the limit price for LIMIT and STOP_LIMIT orders.
	Limit decimal.Decimal

	// Stop is the stop trigger price for STOP and STOP_LIMIT orders.
	Stop decimal.Decimal

	// TrailPct is the retrace fraction for TRAILING_STOP orders,
	// e.g. 0.05 triggers after a 5% retrace from the water mark.
	TrailPct decimal.Decimal

	// TakeProfit and StopLoss are the child legs of a BRACKET order.
	// They stay dormant until the entry leg fills.
	TakeProfit *Order
	StopLoss   *Order

	// entryType is the matching rule of a bracket's entry leg.
	entryType OrderType
}

// NewMarketOrder creates a market order.
func NewMarketOrder(asset Asset, size decimal.Decimal) *Order {
	return &Order{Asset: asset, Size: size, Type: OrderTypeMarket, Status: OrderStatusCreated}
}

// NewLimitOrder creates a limit order.
func NewLimitOrder(asset Asset, size, limit decimal.Decimal) *Order {
	return &Order{Asset: asset, Size: size, Type: OrderTypeLimit, Status: OrderStatusCreated, Limit: limit}
}

// NewStopOrder creates a stop order.
func NewStopOrder(asset Asset, size, stop decimal.Decimal) *Order {
	return &Order{Asset: asset, Size: size, Type: OrderTypeStop, Status: OrderStatusCreated, Stop: stop}
}

// NewStopLimitOrder creates a stop-limit order.
func NewStopLimitOrder(asset Asset, size, stop, limit decimal.Decimal) *Order {
	return &Order{Asset: asset, Size: size, Type: OrderTypeStopLimit, Status: OrderStatusCreated, Stop: stop, Limit: limit}
}

// NewTrailingStopOrder creates a trailing-stop order.
func NewTrailingStopOrder(asset Asset, size, trailPct decimal.Decimal) *Order {
	return &Order{Asset: asset, Size: size, Type: OrderTypeTrailingStop, Status: OrderStatusCreated, TrailPct: trailPct}
}

// NewBracketOrder creates a bracket from an entry leg and its two exit
// legs. The take-profit leg must be a limit order and the stop-loss leg a
// stop, stop-limit or trailing-stop order; both must negate the entry size
// on the entry asset. Invariants are checked by Validate.
func NewBracketOrder(entry, takeProfit, stopLoss *Order) *Order {
	bracket := &Order{
		Type:       OrderTypeBracket,
		Status:     OrderStatusCreated,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
	}
	if entry != nil {
		bracket.Asset = entry.Asset
		bracket.Size = entry.Size
		bracket.Limit = entry.Limit
		bracket.Stop = entry.Stop
		bracket.TrailPct = entry.TrailPct
		// The bracket itself carries the entry leg's matching rule.
		bracket.entryType = entry.Type
	}
	return bracket
}

// EntryType returns the matching rule the entry leg of a bracket uses.
// For non-bracket orders it returns the order's own type.
func (o *Order) EntryType() OrderType {
	if o.Type == OrderTypeBracket && o.entryType != "" {
		return o.entryType
	}
	if o.Type == OrderTypeBracket {
		return OrderTypeMarket
	}
	return o.Type
}

// Direction returns 1 for a buy order and -1 for a sell order.
func (o *Order) Direction() int {
	if o.Size.Sign() < 0 {
		return -1
	}
	return 1
}

// Validate checks the per-variant invariants. It returns nil for a
// well-formed order.
func (o *Order) Validate() error {
	if o.Size.IsZero() {
		return ErrZeroSize
	}
	switch o.Type {
	case OrderTypeMarket:
		return nil
	case OrderTypeLimit:
		if !o.Limit.IsPositive() {
			return ErrInvalidPrice
		}
		return nil
	case OrderTypeStop:
		if !o.Stop.IsPositive() {
			return ErrInvalidPrice
		}
		return nil
	case OrderTypeStopLimit:
		if !o.Stop.IsPositive() || !o.Limit.IsPositive() {
			return ErrInvalidPrice
		}
		return nil
	case OrderTypeTrailingStop:
		if !o.TrailPct.IsPositive() || o.TrailPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return ErrInvalidTrail
		}
		return nil
	case OrderTypeBracket:
		return o.validateBracket()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOrderType, o.Type)
	}
}

func (o *Order) validateBracket() error {
	if o.TakeProfit == nil || o.StopLoss == nil {
		return ErrBracketNilLeg
	}
	if o.TakeProfit.Asset != o.Asset || o.StopLoss.Asset != o.Asset {
		return ErrBracketAsset
	}
	neg := o.Size.Neg()
	if !o.TakeProfit.Size.Equal(neg) || !o.StopLoss.Size.Equal(neg) {
		return ErrBracketSize
	}
	if o.TakeProfit.Type != OrderTypeLimit {
		return ErrBracketLegType
	}
	switch o.StopLoss.Type {
	case OrderTypeStop, OrderTypeStopLimit, OrderTypeTrailingStop:
	default:
		return ErrBracketLegType
	}
	if err := o.TakeProfit.Validate(); err != nil {
		return err
	}
	if err := o.StopLoss.Validate(); err != nil {
		return err
	}
	switch o.EntryType() {
	case OrderTypeMarket:
		return nil
	case OrderTypeLimit:
		if !o.Limit.IsPositive() {
			return ErrInvalidPrice
		}
		return nil
	case OrderTypeStop:
		if !o.Stop.IsPositive() {
			return ErrInvalidPrice
		}
		return nil
	default:
		return ErrBracketLegType
	}
}

// String returns a short description for logging.
func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %s", o.Type, o.Asset.Symbol, o.Size, o.Status)
}

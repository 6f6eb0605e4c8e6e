// Package broker simulates order execution against a virtual brokerage
// account. The SimBroker consumes orders and price events, produces
// executions and trades, and is the only component that mutates an
// account.
package broker

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"backsim/internal/domain"
	"backsim/internal/idhash"
)

// Rejection is the structured outcome of a failed order validation. It is
// reported back to the caller, never raised as a run-fatal error.
type Rejection struct {
	Order  *domain.Order
	Reason error
}

// Options configure a SimBroker. One broker serves exactly one run.
type Options struct {
	RunID          string
	BaseCurrency   string
	InitialDeposit decimal.Decimal

	// AccountModel derives buying power; CashAccount when nil.
	AccountModel AccountModel

	// FeeModel prices executions; NoFee when nil.
	FeeModel FeeModel

	// OrderTTL expires open orders after this much event time.
	// Zero disables expiry.
	OrderTTL time.Duration

	// Logger receives rejection and expiry lines; silent when nil.
	Logger *log.Logger
}

// SimBroker advances account state from placed orders and price events.
// All methods must be called from the run's own goroutine; per-run
// isolation makes locking unnecessary.
type SimBroker struct {
	runID        string
	account      *domain.Account
	accountModel AccountModel
	feeModel     FeeModel
	ttl          time.Duration
	logger       *log.Logger

	// open preserves placement order so matching stays deterministic.
	open []*domain.Order

	trades     []domain.Trade
	executions []domain.Execution

	placedAt  map[string]time.Time
	waterMark map[string]decimal.Decimal
	armed     map[string]bool

	// sibling and parent track bracket leg linkage once the entry fills.
	sibling map[string]*domain.Order
	parent  map[string]*domain.Order

	nextID   int
	tradeSeq int
}

// New creates a broker with a fresh account.
func New(opts Options) *SimBroker {
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "USD"
	}
	model := opts.AccountModel
	if model == nil {
		model = CashAccount{}
	}
	fees := opts.FeeModel
	if fees == nil {
		fees = NoFee{}
	}

	acct := domain.NewAccount(opts.BaseCurrency, opts.InitialDeposit)
	acct.BuyingPower = model.BuyingPower(acct)

	return &SimBroker{
		runID:        opts.RunID,
		account:      acct,
		accountModel: model,
		feeModel:     fees,
		ttl:          opts.OrderTTL,
		logger:       opts.Logger,
		placedAt:     make(map[string]time.Time),
		waterMark:    make(map[string]decimal.Decimal),
		armed:        make(map[string]bool),
		sibling:      make(map[string]*domain.Order),
		parent:       make(map[string]*domain.Order),
	}
}

// Account returns the broker's account. Callers outside the execution
// engine must treat it as read-only.
func (b *SimBroker) Account() *domain.Account { return b.account }

// Trades returns the append-only trade ledger.
func (b *SimBroker) Trades() []domain.Trade { return b.trades }

// Executions returns all fills produced so far.
func (b *SimBroker) Executions() []domain.Execution { return b.executions }

// Place validates and accepts orders. Invalid orders come back as
// rejections with status REJECTED; valid orders join the open-order set
// with status ACCEPTED.
func (b *SimBroker) Place(orders []*domain.Order) []Rejection {
	var rejections []Rejection
	for _, order := range orders {
		if order == nil {
			continue
		}
		if err := order.Validate(); err != nil {
			order.Status = domain.OrderStatusRejected
			rejections = append(rejections, Rejection{Order: order, Reason: err})
			if b.logger != nil {
				b.logger.Printf("rejected order %s: %v", order, err)
			}
			continue
		}
		b.accept(order)
	}
	return rejections
}

func (b *SimBroker) accept(order *domain.Order) {
	if order.ID == "" {
		b.nextID++
		order.ID = fmt.Sprintf("%s-order-%d", b.runID, b.nextID)
	}
	order.Status = domain.OrderStatusAccepted
	b.account.Orders[order.ID] = order
	b.open = append(b.open, order)
	b.placedAt[order.ID] = b.account.LastUpdate
}

// Sync evaluates every open order against one event, applies the
// resulting fills and refreshes derived account state. Events must arrive
// in strictly increasing time order.
func (b *SimBroker) Sync(event *domain.Event) {
	b.markPositions(event)
	b.expireOrders(event.Time)

	// Fills append bracket children to b.open; they are evaluated from
	// the next event on, which keeps one fill per order per bar.
	active := make([]*domain.Order, len(b.open))
	copy(active, b.open)

	for _, order := range active {
		if order.Status.Closed() {
			continue
		}
		// A partially filled bracket is just the parent shell whose exit
		// legs are live; the shell itself no longer matches.
		if order.Status == domain.OrderStatusPartiallyFilled {
			continue
		}
		bar, ok := event.PriceBar(order.Asset)
		if !ok {
			// Price unknown this step; skip matching, never fault.
			continue
		}
		price, ok := b.match(order, bar)
		if !ok {
			continue
		}
		b.applyFill(order, price, event.Time)
	}

	b.compactOpen()
	b.account.BuyingPower = b.accountModel.BuyingPower(b.account)
	b.account.LastUpdate = event.Time
}

// markPositions refreshes position mark prices from the event.
func (b *SimBroker) markPositions(event *domain.Event) {
	for asset, pos := range b.account.Positions {
		price, ok := event.Price(asset)
		if !ok {
			continue
		}
		pos.MarkPrice = price
		pos.MarkTime = event.Time
		b.account.Positions[asset] = pos
	}
}

func (b *SimBroker) expireOrders(now time.Time) {
	if b.ttl <= 0 {
		return
	}
	for _, order := range b.open {
		if order.Status.Closed() {
			continue
		}
		placed, ok := b.placedAt[order.ID]
		if !ok || placed.IsZero() {
			// Placed before the first event; the TTL clock starts now.
			b.placedAt[order.ID] = now
			continue
		}
		if now.Sub(placed) <= b.ttl {
			continue
		}
		b.close(order, domain.OrderStatusExpired)
		// A bracket leg expires together with its sibling.
		if sib := b.sibling[order.ID]; sib != nil && !sib.Status.Closed() {
			b.close(sib, domain.OrderStatusExpired)
		}
		if parent := b.parent[order.ID]; parent != nil && !parent.Status.Closed() {
			parent.Status = domain.OrderStatusExpired
		}
		if b.logger != nil {
			b.logger.Printf("expired order %s", order)
		}
	}
}

// match evaluates one order against one bar and returns the fill price.
// Bars yield at most one full fill per order.
func (b *SimBroker) match(order *domain.Order, bar domain.Bar) (decimal.Decimal, bool) {
	buy := order.Direction() > 0

	switch order.EntryType() {
	case domain.OrderTypeMarket:
		return bar.Open, true

	case domain.OrderTypeLimit:
		return matchLimit(order.Limit, bar, buy)

	case domain.OrderTypeStop:
		return matchStop(order.Stop, bar, buy)

	case domain.OrderTypeStopLimit:
		if !b.armed[order.ID] {
			if _, ok := matchStop(order.Stop, bar, buy); !ok {
				return decimal.Decimal{}, false
			}
			b.armed[order.ID] = true
		}
		// From the trigger bar onward the order behaves as a limit.
		return matchLimit(order.Limit, bar, buy)

	case domain.OrderTypeTrailingStop:
		return b.matchTrailing(order, bar, buy)

	default:
		return decimal.Decimal{}, false
	}
}

// matchLimit fills when the bar range crosses the limit in the favorable
// direction. The fill is the limit or better; a favorable gap fills at
// the open.
func matchLimit(limit decimal.Decimal, bar domain.Bar, buy bool) (decimal.Decimal, bool) {
	if buy {
		if bar.Low.LessThanOrEqual(limit) {
			return decimal.Min(limit, bar.Open), true
		}
		return decimal.Decimal{}, false
	}
	if bar.High.GreaterThanOrEqual(limit) {
		return decimal.Max(limit, bar.Open), true
	}
	return decimal.Decimal{}, false
}

// matchStop triggers when price crosses the stop level. The fill is the
// stop price, or the bar open when the bar gaps through the level; a gap
// never fills better than the gap.
func matchStop(stop decimal.Decimal, bar domain.Bar, buy bool) (decimal.Decimal, bool) {
	if buy {
		if bar.High.GreaterThanOrEqual(stop) {
			return decimal.Max(stop, bar.Open), true
		}
		return decimal.Decimal{}, false
	}
	if bar.Low.LessThanOrEqual(stop) {
		return decimal.Min(stop, bar.Open), true
	}
	return decimal.Decimal{}, false
}

// matchTrailing maintains the order's water mark from the favorable price
// extreme each bar and triggers like a stop once price retraces by the
// trail fraction from the mark.
func (b *SimBroker) matchTrailing(order *domain.Order, bar domain.Bar, buy bool) (decimal.Decimal, bool) {
	one := decimal.NewFromInt(1)

	mark, ok := b.waterMark[order.ID]
	if !ok {
		mark = bar.Open
	}
	if buy {
		// A buy trailing stop chases the low and triggers on a rally.
		mark = decimal.Min(mark, bar.Low)
		b.waterMark[order.ID] = mark
		level := mark.Mul(one.Add(order.TrailPct))
		return matchStop(level, bar, true)
	}
	mark = decimal.Max(mark, bar.High)
	b.waterMark[order.ID] = mark
	level := mark.Mul(one.Sub(order.TrailPct))
	return matchStop(level, bar, false)
}

// applyFill turns one match into an execution, a position update, a trade
// and a cash adjustment, then advances order lifecycle state.
func (b *SimBroker) applyFill(order *domain.Order, price decimal.Decimal, now time.Time) {
	exec := domain.Execution{
		OrderID: order.ID,
		Asset:   order.Asset,
		Size:    order.Size,
		Price:   price,
		Time:    now,
	}
	fee := b.feeModel.Calculate(exec, now, b.trades)
	realized := b.applyPosition(exec)

	currency := order.Asset.Currency
	b.account.Cash[currency] = b.account.Cash[currency].Sub(exec.Value()).Sub(fee)

	b.executions = append(b.executions, exec)
	b.tradeSeq++
	b.trades = append(b.trades, domain.Trade{
		TradeID:     idhash.ComputeTradeID(b.runID, order.ID, now.UnixMilli(), b.tradeSeq),
		RunID:       b.runID,
		OrderID:     order.ID,
		Asset:       order.Asset,
		Size:        exec.Size,
		Price:       exec.Price,
		Fee:         fee,
		RealizedPNL: realized,
		Time:        now,
	})

	b.advanceLifecycle(order, now)
}

func (b *SimBroker) advanceLifecycle(order *domain.Order, now time.Time) {
	if order.Type == domain.OrderTypeBracket {
		// Entry leg filled: the bracket stays partially filled while its
		// exit legs go live.
		order.Status = domain.OrderStatusPartiallyFilled
		b.activateBracketLegs(order, now)
		return
	}

	order.Status = domain.OrderStatusFilled

	// A filled bracket leg cancels its sibling; the two legs are
	// mutually exclusive terminal outcomes.
	if sib := b.sibling[order.ID]; sib != nil && !sib.Status.Closed() {
		b.close(sib, domain.OrderStatusCancelled)
	}
	if parent := b.parent[order.ID]; parent != nil {
		parent.Status = domain.OrderStatusFilled
	}
}

// activateBracketLegs makes the take-profit and stop-loss legs live once
// the entry leg has fully filled. The stop-loss leg is registered first
// so a bar spanning both legs always resolves to the stop, a deterministic
// and conservative tie-break.
func (b *SimBroker) activateBracketLegs(bracket *domain.Order, now time.Time) {
	sl, tp := bracket.StopLoss, bracket.TakeProfit

	for _, leg := range []*domain.Order{sl, tp} {
		b.accept(leg)
		b.placedAt[leg.ID] = now
		b.parent[leg.ID] = bracket
	}
	b.sibling[sl.ID] = tp
	b.sibling[tp.ID] = sl
}

// applyPosition merges one execution into the position for its asset and
// returns the realized P&L. Same-direction adds move the weighted-average
// cost basis; reductions realize against it; reversals close the position
// and open the remainder at the fill price.
func (b *SimBroker) applyPosition(exec domain.Execution) decimal.Decimal {
	asset := exec.Asset
	mult := decimal.NewFromInt(asset.ContractMultiplier())
	pos, exists := b.account.Positions[asset]

	if !exists || pos.Size.IsZero() {
		b.account.Positions[asset] = domain.Position{
			Asset:     asset,
			Size:      exec.Size,
			AvgPrice:  exec.Price,
			MarkPrice: exec.Price,
			MarkTime:  exec.Time,
		}
		return decimal.Zero
	}

	if pos.Size.Sign() == exec.Size.Sign() {
		newSize := pos.Size.Add(exec.Size)
		pos.AvgPrice = pos.Size.Mul(pos.AvgPrice).Add(exec.Size.Mul(exec.Price)).Div(newSize)
		pos.Size = newSize
		pos.MarkPrice = exec.Price
		pos.MarkTime = exec.Time
		b.account.Positions[asset] = pos
		return decimal.Zero
	}

	closed := decimal.Min(exec.Size.Abs(), pos.Size.Abs())
	signedClosed := closed
	if pos.Size.Sign() < 0 {
		signedClosed = closed.Neg()
	}
	realized := exec.Price.Sub(pos.AvgPrice).Mul(signedClosed).Mul(mult)

	newSize := pos.Size.Add(exec.Size)
	switch {
	case newSize.IsZero():
		delete(b.account.Positions, asset)
	case newSize.Sign() == pos.Size.Sign():
		// Partial reduction keeps the cost basis.
		pos.Size = newSize
		pos.MarkPrice = exec.Price
		pos.MarkTime = exec.Time
		b.account.Positions[asset] = pos
	default:
		// Reversal: the remainder opens at the fill price.
		b.account.Positions[asset] = domain.Position{
			Asset:     asset,
			Size:      newSize,
			AvgPrice:  exec.Price,
			MarkPrice: exec.Price,
			MarkTime:  exec.Time,
		}
	}
	return realized
}

// close moves an order to a terminal state and releases its bookkeeping.
func (b *SimBroker) close(order *domain.Order, status domain.OrderStatus) {
	order.Status = status
	delete(b.waterMark, order.ID)
	delete(b.armed, order.ID)
}

// compactOpen drops closed orders from the open set and the account.
func (b *SimBroker) compactOpen() {
	kept := b.open[:0]
	for _, order := range b.open {
		if order.Status.Closed() {
			delete(b.account.Orders, order.ID)
			delete(b.waterMark, order.ID)
			delete(b.armed, order.ID)
			delete(b.placedAt, order.ID)
			continue
		}
		kept = append(kept, order)
	}
	b.open = kept
}

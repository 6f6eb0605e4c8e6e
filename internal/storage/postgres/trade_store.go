package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"backsim/internal/domain"
	"backsim/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeInsertQuery = `
	INSERT INTO trades (
		trade_id, run_id, order_id,
		asset_symbol, asset_type, asset_currency, asset_multiplier,
		size, price, fee, realized_pnl, executed_at
	) VALUES (
		$1, $2, $3,
		$4, $5, $6, $7,
		$8, $9, $10, $11, $12
	)
`

const tradeSelectColumns = `
	trade_id, run_id, order_id,
	asset_symbol, asset_type, asset_currency, asset_multiplier,
	size::text, price::text, fee::text, realized_pnl::text, executed_at
`

// Insert adds one trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, tradeInsertQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, tradeInsertQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all trades for a run, ordered by time ASC, trade_id ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeSelectColumns + `
		FROM trades
		WHERE run_id = $1
		ORDER BY executed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `
		SELECT ` + tradeSelectColumns + `
		FROM trades
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// tradeArgs flattens a trade into insert arguments. Decimals are bound as
// text so NUMERIC columns keep exact values.
func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.TradeID, t.RunID, t.OrderID,
		t.Asset.Symbol, string(t.Asset.Type), t.Asset.Currency, t.Asset.Multiplier,
		t.Size.String(), t.Price.String(), t.Fee.String(), t.RealizedPNL.String(),
		t.Time,
	}
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t         domain.Trade
		assetType string
		size      string
		price     string
		fee       string
		pnl       string
	)

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.OrderID,
		&t.Asset.Symbol, &assetType, &t.Asset.Currency, &t.Asset.Multiplier,
		&size, &price, &fee, &pnl, &t.Time,
	)
	if err != nil {
		return nil, err
	}

	t.Asset.Type = domain.AssetType(assetType)
	if err := parseDecimals(&t, size, price, fee, pnl); err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

func parseDecimals(t *domain.Trade, size, price, fee, pnl string) error {
	var err error
	if t.Size, err = decimal.NewFromString(size); err != nil {
		return fmt.Errorf("parse size: %w", err)
	}
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return fmt.Errorf("parse fee: %w", err)
	}
	if t.RealizedPNL, err = decimal.NewFromString(pnl); err != nil {
		return fmt.Errorf("parse realized_pnl: %w", err)
	}
	return nil
}

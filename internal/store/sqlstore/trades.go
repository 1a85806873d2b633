package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/efreitasn/stockmatch/internal/domain"
)

const tradeColumns = `id, stock_id, buy_order_id, sell_order_id, buyer_id, seller_id, quantity, price, executed_at`

type tradeRepo struct {
	q querier
}

func (r tradeRepo) Append(ctx context.Context, t *domain.Trade) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO trades (`+tradeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.StockID, t.BuyOrderID, t.SellOrderID, t.BuyerID, t.SellerID, t.Quantity, t.Price, toUnix(t.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("append trade %s: %w", t.ID, err)
	}
	return nil
}

func (r tradeRepo) ListByStock(ctx context.Context, stockID string, limit int) ([]*domain.Trade, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE stock_id = ? ORDER BY rowid DESC LIMIT ?`, stockID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return scanTrades(rows)
}

func (r tradeRepo) ListSince(ctx context.Context, stockID string, since time.Time) ([]*domain.Trade, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE stock_id = ? AND executed_at >= ? ORDER BY executed_at DESC, rowid DESC`,
		stockID, toUnix(since))
	if err != nil {
		return nil, fmt.Errorf("list trades since: %w", err)
	}
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	defer rows.Close()

	result := make([]*domain.Trade, 0)
	for rows.Next() {
		var (
			t        domain.Trade
			executed int64
		)
		if err := rows.Scan(&t.ID, &t.StockID, &t.BuyOrderID, &t.SellOrderID, &t.BuyerID, &t.SellerID,
			&t.Quantity, &t.Price, &executed); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.ExecutedAt = fromUnix(executed)
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}

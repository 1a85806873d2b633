package store

import (
	"context"
	"sort"
	"time"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// memTrades is the in-memory TradeRepository. Trades are append-only and
// chronological per stock.
type memTrades struct {
	m  *Memory
	tx *memTx
}

func (r memTrades) Append(_ context.Context, t *domain.Trade) error {
	c := *t
	if r.tx != nil {
		r.tx.trades = append(r.tx.trades, &c)
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.data.trades[c.StockID] = append(r.m.data.trades[c.StockID], &c)
	return nil
}

func (r memTrades) ListByStock(_ context.Context, stockID string, limit int) ([]*domain.Trade, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	all := r.visible(stockID)
	result := make([]*domain.Trade, 0)
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		c := *all[i]
		result = append(result, &c)
	}
	return result, nil
}

func (r memTrades) ListSince(_ context.Context, stockID string, since time.Time) ([]*domain.Trade, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	all := r.visible(stockID)
	result := make([]*domain.Trade, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ExecutedAt.Before(since) {
			continue
		}
		c := *all[i]
		result = append(result, &c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExecutedAt.After(result[j].ExecutedAt)
	})
	return result, nil
}

// visible returns the committed trades of a stock followed by the ones
// staged in the transaction. Callers hold r.m.mu.
func (r memTrades) visible(stockID string) []*domain.Trade {
	all := append([]*domain.Trade(nil), r.m.data.trades[stockID]...)
	if r.tx != nil {
		for _, t := range r.tx.trades {
			if t.StockID == stockID {
				all = append(all, t)
			}
		}
	}
	return all
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/store"
)

// Equilibrium is the clearing price that maximizes matchable volume for a
// stock's current book.
type Equilibrium struct {
	StockID           string
	EquilibriumPrice  domain.Money
	TotalBuyVolume    int64
	TotalSellVolume   int64
	MatchableVolume   int64
	BuyVolumeAtPrice  int64
	SellVolumeAtPrice int64
}

// EquilibriumCalculator computes equilibria without changing any state.
type EquilibriumCalculator struct {
	repos store.Repositories
	locks *StockLocks
}

// NewEquilibriumCalculator creates a calculator reading from repos.
func NewEquilibriumCalculator(repos store.Repositories, locks *StockLocks) *EquilibriumCalculator {
	return &EquilibriumCalculator{repos: repos, locks: locks}
}

// Calculate loads the stock's active orders and reference price under its
// lock, so neither is observed halfway through a match pass, and computes
// the equilibrium. A stock with no record falls back to a zero reference
// price.
func (c *EquilibriumCalculator) Calculate(ctx context.Context, stockID string) (*Equilibrium, error) {
	mu := c.locks.Get(stockID)
	mu.Lock()
	defer mu.Unlock()

	buys, err := c.repos.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeBuy)
	if err != nil {
		return nil, fmt.Errorf("load buy orders: %w", err)
	}
	sells, err := c.repos.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeSell)
	if err != nil {
		return nil, fmt.Errorf("load sell orders: %w", err)
	}

	var current *domain.Money
	stock, err := c.repos.Stocks().FindByID(ctx, stockID)
	switch {
	case err == nil:
		current = stock.CurrentPrice
	case !errors.Is(err, domain.ErrStockNotFound):
		return nil, fmt.Errorf("load stock: %w", err)
	}

	return ComputeEquilibrium(BuildOrderBook(stockID, buys, sells), current), nil
}

// ComputeEquilibrium evaluates the book at every distinct order price,
// highest first, and keeps the first price with the largest
// min(buy volume at or above p, sell volume at or below p).
// currentPrice may be nil.
func ComputeEquilibrium(book *OrderBook, currentPrice *domain.Money) *Equilibrium {
	eq := &Equilibrium{
		StockID:         book.StockID(),
		TotalBuyVolume:  book.BidVolume(),
		TotalSellVolume: book.AskVolume(),
	}

	fallback := domain.ZeroMoney()
	if currentPrice != nil {
		fallback = *currentPrice
	}
	eq.EquilibriumPrice = fallback

	bestBid, hasBid := book.BestBid()
	bestAsk, hasAsk := book.BestAsk()
	if !hasBid || !hasAsk {
		return eq
	}

	if bestBid.Price.LessThan(bestAsk.Price) {
		if currentPrice == nil {
			eq.EquilibriumPrice = domain.Midpoint(bestBid.Price, bestAsk.Price)
		}
		return eq
	}

	for _, p := range book.Prices() {
		var buyVol, sellVol int64
		book.WalkBids(func(e OrderBookEntry) bool {
			if e.Price.LessThan(p) {
				return false
			}
			buyVol += e.Order.RemainingQuantity
			return true
		})
		book.WalkAsks(func(e OrderBookEntry) bool {
			if e.Price.GreaterThan(p) {
				return false
			}
			sellVol += e.Order.RemainingQuantity
			return true
		})

		if v := min(buyVol, sellVol); v > eq.MatchableVolume {
			eq.MatchableVolume = v
			eq.EquilibriumPrice = p
			eq.BuyVolumeAtPrice = buyVol
			eq.SellVolumeAtPrice = sellVol
		}
	}
	return eq
}

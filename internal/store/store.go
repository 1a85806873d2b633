// Package store defines the persistence contracts used by the matching
// engine and services, and an in-memory implementation of them.
package store

import (
	"context"
	"time"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// OrderRepository persists orders.
type OrderRepository interface {
	// Save inserts or replaces an order.
	Save(ctx context.Context, o *domain.Order) error
	// Get returns domain.ErrOrderNotFound when the order does not exist.
	Get(ctx context.Context, id string) (*domain.Order, error)
	// FindPendingByStock returns the PENDING and PARTIALLY_FILLED orders of
	// one side for a stock, in submission order.
	FindPendingByStock(ctx context.Context, stockID string, typ domain.OrderType) ([]*domain.Order, error)
	// ListByUser returns a page of a user's orders, newest first, and the
	// total number of matching orders. Pagination is 1-based.
	ListByUser(ctx context.Context, userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error)
}

// StockRepository persists stocks.
type StockRepository interface {
	// FindByID returns domain.ErrStockNotFound when the stock does not exist.
	FindByID(ctx context.Context, id string) (*domain.Stock, error)
	// FindBySymbol returns domain.ErrStockNotFound when no stock has the symbol.
	FindBySymbol(ctx context.Context, symbol string) (*domain.Stock, error)
	// Save inserts or replaces a stock. It returns
	// domain.ErrStockAlreadyExists when another stock owns the symbol.
	Save(ctx context.Context, s *domain.Stock) error
	// List returns all stocks ordered by symbol.
	List(ctx context.Context) ([]*domain.Stock, error)
}

// PortfolioRepository persists portfolios, unique per user and stock.
type PortfolioRepository interface {
	// FindByUserAndStock returns domain.ErrPortfolioNotFound when the user
	// has never held the stock.
	FindByUserAndStock(ctx context.Context, userID, stockID string) (*domain.Portfolio, error)
	// ListByUser returns every portfolio of a user.
	ListByUser(ctx context.Context, userID string) ([]*domain.Portfolio, error)
	// Save inserts or replaces a portfolio.
	Save(ctx context.Context, p *domain.Portfolio) error
}

// TradeRepository persists executed trades. Trades are append-only.
type TradeRepository interface {
	Append(ctx context.Context, t *domain.Trade) error
	// ListByStock returns at most limit trades for a stock, newest first.
	ListByStock(ctx context.Context, stockID string, limit int) ([]*domain.Trade, error)
	// ListSince returns every trade for a stock executed at or after since,
	// newest first.
	ListSince(ctx context.Context, stockID string, since time.Time) ([]*domain.Trade, error)
}

// Repositories groups the repositories that share one unit of work.
type Repositories interface {
	Orders() OrderRepository
	Stocks() StockRepository
	Portfolios() PortfolioRepository
	Trades() TradeRepository
}

// Store is a Repositories backed by storage that supports all-or-nothing
// units of work.
type Store interface {
	Repositories
	// InTx runs fn against repositories whose writes become visible only
	// if fn returns nil. Any error discards every write made through them.
	InTx(ctx context.Context, fn func(Repositories) error) error
	Close() error
}

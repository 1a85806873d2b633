package service

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/store"
)

// CreateStockRequest represents the input for stock listing.
type CreateStockRequest struct {
	Symbol       string
	CompanyName  string
	InitialPrice *domain.Money
}

// BookResponse is an aggregated snapshot of a stock's order book.
type BookResponse struct {
	StockID    string
	Symbol     string
	Bids       []engine.PriceLevel
	Asks       []engine.PriceLevel
	Spread     *domain.Money // nil if either side empty
	SnapshotAt time.Time
}

// PriceResponse describes a stock's reference price together with the
// recent trading activity behind it.
type PriceResponse struct {
	StockID        string
	Symbol         string
	CurrentPrice   *domain.Money // nil until the first trade or admin update
	Window         string        // e.g. "5m"
	WindowVWAP     *domain.Money // nil when no trades in the window
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
}

// StockService handles stock listing, administration, and book queries.
type StockService struct {
	store      store.Store
	locks      *engine.StockLocks
	vwapWindow time.Duration
}

// NewStockService creates a new StockService with the given dependencies.
func NewStockService(st store.Store, locks *engine.StockLocks, vwapWindow time.Duration) *StockService {
	return &StockService{
		store:      st,
		locks:      locks,
		vwapWindow: vwapWindow,
	}
}

// CreateStock lists a new AVAILABLE stock. Symbols are stored upper-cased
// and must be unique.
func (s *StockService) CreateStock(ctx context.Context, req CreateStockRequest) (*domain.Stock, error) {
	stock, err := domain.NewStock(req.Symbol, req.CompanyName)
	if err != nil {
		return nil, err
	}
	if req.InitialPrice != nil {
		if err := validatePrice("initialPrice", *req.InitialPrice); err != nil {
			return nil, err
		}
		if err := stock.UpdatePrice(*req.InitialPrice); err != nil {
			return nil, err
		}
	}

	if _, err := s.store.Stocks().FindBySymbol(ctx, stock.Symbol); err == nil {
		return nil, domain.ErrStockAlreadyExists
	}
	if err := s.store.Stocks().Save(ctx, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

// GetStock retrieves a stock by ID.
func (s *StockService) GetStock(ctx context.Context, stockID string) (*domain.Stock, error) {
	return s.store.Stocks().FindByID(ctx, stockID)
}

// ListStocks returns every stock ordered by symbol.
func (s *StockService) ListStocks(ctx context.Context) ([]*domain.Stock, error) {
	return s.store.Stocks().List(ctx)
}

// UpdatePrice sets a stock's reference price by hand.
func (s *StockService) UpdatePrice(ctx context.Context, stockID string, price domain.Money) (*domain.Stock, error) {
	if err := validatePrice("price", price); err != nil {
		return nil, err
	}
	return s.modify(ctx, stockID, func(stock *domain.Stock) error {
		return stock.UpdatePrice(price)
	})
}

// SetStatus opens or halts trading on a stock. Resting orders stay on the
// book either way.
func (s *StockService) SetStatus(ctx context.Context, stockID string, status domain.StockStatus) (*domain.Stock, error) {
	return s.modify(ctx, stockID, func(stock *domain.Stock) error {
		return stock.SetStatus(status)
	})
}

// modify applies fn to the stock under its lock, so the change cannot be
// overwritten by a concurrent match pass.
func (s *StockService) modify(ctx context.Context, stockID string, fn func(*domain.Stock) error) (*domain.Stock, error) {
	mu := s.locks.Get(stockID)
	mu.Lock()
	defer mu.Unlock()

	stock, err := s.store.Stocks().FindByID(ctx, stockID)
	if err != nil {
		return nil, err
	}
	if err := fn(stock); err != nil {
		return nil, err
	}
	if err := s.store.Stocks().Save(ctx, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

// GetBook returns the top depth price levels of each side of the book.
func (s *StockService) GetBook(ctx context.Context, stockID string, depth int) (*BookResponse, error) {
	if err := validateRange("depth", depth, 1, 50); err != nil {
		return nil, err
	}
	stock, err := s.store.Stocks().FindByID(ctx, stockID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.Get(stockID)
	mu.Lock()
	buys, err := s.store.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeBuy)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	sells, err := s.store.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeSell)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	book := engine.BuildOrderBook(stockID, buys, sells)
	resp := &BookResponse{
		StockID:    stockID,
		Symbol:     stock.Symbol,
		Bids:       book.TopBids(depth),
		Asks:       book.TopAsks(depth),
		SnapshotAt: time.Now().UTC(),
	}

	// Spread = best ask - best bid.
	if len(resp.Bids) > 0 && len(resp.Asks) > 0 {
		spread := resp.Asks[0].Price.Sub(resp.Bids[0].Price)
		resp.Spread = &spread
	}
	return resp, nil
}

// ListTrades returns up to limit of the stock's trades, newest first.
func (s *StockService) ListTrades(ctx context.Context, stockID string, limit int) ([]*domain.Trade, error) {
	if err := validateRange("limit", limit, 1, 100); err != nil {
		return nil, err
	}
	if _, err := s.store.Stocks().FindByID(ctx, stockID); err != nil {
		return nil, err
	}
	return s.store.Trades().ListByStock(ctx, stockID, limit)
}

// GetPrice returns the stock's reference price and the VWAP of its trades
// within the configured window.
func (s *StockService) GetPrice(ctx context.Context, stockID string) (*PriceResponse, error) {
	stock, err := s.store.Stocks().FindByID(ctx, stockID)
	if err != nil {
		return nil, err
	}

	resp := &PriceResponse{
		StockID:      stock.ID,
		Symbol:       stock.Symbol,
		CurrentPrice: stock.CurrentPrice,
		Window:       formatDuration(s.vwapWindow),
	}

	latest, err := s.store.Trades().ListByStock(ctx, stockID, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return resp, nil
	}
	resp.LastTradeAt = &latest[0].ExecutedAt

	trades, err := s.store.Trades().ListSince(ctx, stockID, time.Now().Add(-s.vwapWindow))
	if err != nil {
		return nil, err
	}
	total := domain.ZeroMoney()
	var qty int64
	for _, t := range trades {
		total = total.Add(t.Value())
		qty += t.Quantity
	}
	resp.TradesInWindow = len(trades)
	if qty > 0 {
		vwap := total.Per(qty)
		resp.WindowVWAP = &vwap
	}
	return resp, nil
}

// formatDuration converts a time.Duration to a human-readable string
// like "5m" for the window field.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}

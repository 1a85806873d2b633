package service

import (
	"context"
	"errors"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/store"
)

// GrantRequest seeds a user's holdings of a stock.
type GrantRequest struct {
	UserID       string
	StockID      string
	Quantity     int64
	AveragePrice domain.Money
}

// PortfolioValuation is a position valued at the stock's current price.
type PortfolioValuation struct {
	Portfolio  *domain.Portfolio
	Symbol     string
	PriceUsed  domain.Money
	TotalValue domain.Money
	GainLoss   domain.Money
	ReturnRate domain.Percentage
}

// PortfolioService manages user holdings.
type PortfolioService struct {
	store store.Store
	locks *engine.StockLocks
}

// NewPortfolioService creates a new PortfolioService with the given dependencies.
func NewPortfolioService(st store.Store, locks *engine.StockLocks) *PortfolioService {
	return &PortfolioService{store: st, locks: locks}
}

// Grant adds shares to a user's position, opening it if needed. The
// average purchase price absorbs the granted shares at req.AveragePrice.
func (s *PortfolioService) Grant(ctx context.Context, req GrantRequest) (*domain.Portfolio, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	if err := validateStockID(req.StockID); err != nil {
		return nil, err
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return nil, err
	}
	if err := validateAmount("averagePrice", req.AveragePrice); err != nil {
		return nil, err
	}
	if _, err := s.store.Stocks().FindByID(ctx, req.StockID); err != nil {
		return nil, err
	}

	// Settlement writes portfolios under the same lock.
	mu := s.locks.Get(req.StockID)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Portfolios().FindByUserAndStock(ctx, req.UserID, req.StockID)
	switch {
	case errors.Is(err, domain.ErrPortfolioNotFound):
		p, err = domain.NewPortfolio(req.UserID, req.StockID, req.Quantity, req.AveragePrice)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := p.AddShares(req.Quantity, req.AveragePrice); err != nil {
			return nil, err
		}
	}

	if err := s.store.Portfolios().Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPortfolios values every position of the user. A stock without a
// current price is valued at the position's average purchase price.
func (s *PortfolioService) ListPortfolios(ctx context.Context, userID string) ([]PortfolioValuation, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	portfolios, err := s.store.Portfolios().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]PortfolioValuation, 0, len(portfolios))
	for _, p := range portfolios {
		v := PortfolioValuation{Portfolio: p, PriceUsed: p.AveragePurchasePrice}
		stock, err := s.store.Stocks().FindByID(ctx, p.StockID)
		switch {
		case err == nil:
			v.Symbol = stock.Symbol
			if stock.CurrentPrice != nil {
				v.PriceUsed = *stock.CurrentPrice
			}
		case !errors.Is(err, domain.ErrStockNotFound):
			return nil, err
		}
		v.TotalValue = p.TotalValue(v.PriceUsed).Round()
		v.GainLoss = p.GainLoss(v.PriceUsed).Round()
		v.ReturnRate = p.ReturnRate(v.PriceUsed)
		result = append(result, v)
	}
	return result, nil
}

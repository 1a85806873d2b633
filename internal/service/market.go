package service

import (
	"context"

	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/store"
)

// MatchResult is the outcome of a triggered match pass and the
// equilibrium of the book it left behind.
type MatchResult struct {
	StockID     string
	Matches     []engine.Match
	Equilibrium *engine.Equilibrium
}

// MarketService exposes the matching engine's operations for a stock.
type MarketService struct {
	stocks     store.StockRepository
	matcher    *engine.Matcher
	calculator *engine.EquilibriumCalculator
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(stocks store.StockRepository, matcher *engine.Matcher, calculator *engine.EquilibriumCalculator) *MarketService {
	return &MarketService{
		stocks:     stocks,
		matcher:    matcher,
		calculator: calculator,
	}
}

// Match runs a match pass on the stock and reports the equilibrium
// afterwards.
func (s *MarketService) Match(ctx context.Context, stockID string) (*MatchResult, error) {
	if err := s.requireStock(ctx, stockID); err != nil {
		return nil, err
	}

	matches, err := s.matcher.MatchOrders(ctx, stockID)
	if err != nil {
		return nil, err
	}
	eq, err := s.calculator.Calculate(ctx, stockID)
	if err != nil {
		return nil, err
	}
	return &MatchResult{StockID: stockID, Matches: matches, Equilibrium: eq}, nil
}

// Equilibrium computes the stock's clearing price without trading.
func (s *MarketService) Equilibrium(ctx context.Context, stockID string) (*engine.Equilibrium, error) {
	if err := s.requireStock(ctx, stockID); err != nil {
		return nil, err
	}
	return s.calculator.Calculate(ctx, stockID)
}

func (s *MarketService) requireStock(ctx context.Context, stockID string) error {
	if err := validateStockID(stockID); err != nil {
		return err
	}
	_, err := s.stocks.FindByID(ctx, stockID)
	return err
}

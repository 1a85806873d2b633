package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/store"
)

// testEnv bundles every service over one in-memory store.
type testEnv struct {
	store      *store.Memory
	locks      *engine.StockLocks
	matcher    *engine.Matcher
	orders     *OrderService
	stocks     *StockService
	market     *MarketService
	portfolios *PortfolioService
}

func newTestEnv(autoMatch bool) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	locks := engine.NewStockLocks()
	m := engine.NewMatcher(mem, locks, domain.Percentage{}, logger)
	calc := engine.NewEquilibriumCalculator(mem, locks)
	return &testEnv{
		store:      mem,
		locks:      locks,
		matcher:    m,
		orders:     NewOrderService(mem, m, locks, autoMatch, logger),
		stocks:     NewStockService(mem, locks, 5*time.Minute),
		market:     NewMarketService(mem.Stocks(), m, calc),
		portfolios: NewPortfolioService(mem, locks),
	}
}

func money(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	if err != nil {
		t.Fatalf("ParseMoney(%s): %v", s, err)
	}
	return m
}

func (env *testEnv) createStock(t *testing.T, symbol string) *domain.Stock {
	t.Helper()
	s, err := env.stocks.CreateStock(context.Background(), CreateStockRequest{
		Symbol:      symbol,
		CompanyName: symbol + " Inc.",
	})
	if err != nil {
		t.Fatalf("failed to create stock %s: %v", symbol, err)
	}
	return s
}

func (env *testEnv) grant(t *testing.T, userID, stockID string, qty int64) {
	t.Helper()
	_, err := env.portfolios.Grant(context.Background(), GrantRequest{
		UserID:       userID,
		StockID:      stockID,
		Quantity:     qty,
		AveragePrice: domain.MoneyFromInt(10),
	})
	if err != nil {
		t.Fatalf("failed to grant %d shares to %s: %v", qty, userID, err)
	}
}

func (env *testEnv) place(t *testing.T, userID, stockID string, typ domain.OrderType, qty int64, price string) *PlaceOrderResult {
	t.Helper()
	res, err := env.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        userID,
		StockID:       stockID,
		Type:          typ,
		Quantity:      qty,
		PricePerShare: money(t, price),
	})
	if err != nil {
		t.Fatalf("failed to place %s order for %s: %v", typ, userID, err)
	}
	return res
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/store"
)

// Match is one execution produced by a match pass. BuyOrder and SellOrder
// reflect the orders after the fill.
type Match struct {
	BuyOrder  *domain.Order
	SellOrder *domain.Order
	Quantity  int64
	Price     domain.Money
	TradeID   string
}

// Value returns price × quantity.
func (m Match) Value() domain.Money {
	return m.Price.Mul(m.Quantity)
}

// Matcher runs price-time priority match passes over a stock's book.
type Matcher struct {
	store   store.Store
	locks   *StockLocks
	feeRate domain.Percentage
	logger  *slog.Logger
}

// NewMatcher creates a Matcher. feeRate is charged to both sides of every
// match on the traded value; a zero rate disables fees.
func NewMatcher(st store.Store, locks *StockLocks, feeRate domain.Percentage, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		store:   st,
		locks:   locks,
		feeRate: feeRate,
		logger:  logger,
	}
}

// MatchOrders crosses every compatible pair of active buy and sell orders
// for stockID and returns the executions in the order they happened.
//
// Buys are visited best first (highest price, then oldest) and each buy
// walks the asks best first (lowest price, then oldest) until it is filled
// or the asks stop crossing. Every execution happens at the midpoint of the
// two limit prices. When anything traded, the stock's current price becomes
// the volume-weighted average price of the pass.
//
// The pass holds the per-stock lock and runs in a single unit of work: on
// any error nothing it wrote is kept.
func (m *Matcher) MatchOrders(ctx context.Context, stockID string) ([]Match, error) {
	mu := m.locks.Get(stockID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	var matches []Match
	err := m.store.InTx(ctx, func(repos store.Repositories) error {
		var passErr error
		matches, passErr = m.runPass(ctx, repos, stockID)
		return passErr
	})
	MatchPassDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		MatchPasses.WithLabelValues(passFailed).Inc()
		m.logAbortedPass(stockID, matches, err)
		return nil, fmt.Errorf("match orders for stock %s: %w", stockID, err)
	}

	if len(matches) == 0 {
		MatchPasses.WithLabelValues(passEmpty).Inc()
		return []Match{}, nil
	}

	var shares int64
	for _, mt := range matches {
		shares += mt.Quantity
	}
	MatchPasses.WithLabelValues(passMatched).Inc()
	MatchesExecuted.Add(float64(len(matches)))
	SharesMatched.Add(float64(shares))

	m.logger.Info("match pass completed",
		slog.String("stock_id", stockID),
		slog.Int("matches", len(matches)),
		slog.Int64("shares", shares),
		slog.Duration("duration", time.Since(start)),
	)
	return matches, nil
}

// runPass does the work of one pass against repos. It returns the matches
// executed so far even when it fails, so they can be reported.
func (m *Matcher) runPass(ctx context.Context, repos store.Repositories, stockID string) ([]Match, error) {
	buys, err := repos.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeBuy)
	if err != nil {
		return nil, fmt.Errorf("load buy orders: %w", err)
	}
	sells, err := repos.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeSell)
	if err != nil {
		return nil, fmt.Errorf("load sell orders: %w", err)
	}

	matches := make([]Match, 0)
	if len(buys) == 0 || len(sells) == 0 {
		return matches, nil
	}

	book := BuildOrderBook(stockID, buys, sells)
	var passErr error

	book.WalkBids(func(bid OrderBookEntry) bool {
		buy := bid.Order
		if buy.RemainingQuantity == 0 {
			return true
		}
		book.WalkAsks(func(ask OrderBookEntry) bool {
			sell := ask.Order
			if sell.RemainingQuantity == 0 {
				return true
			}
			// Asks are sorted by price, so no later ask crosses either.
			if buy.PricePerShare.LessThan(sell.PricePerShare) {
				return false
			}

			mt, err := m.execute(ctx, repos, stockID, buy, sell)
			if err != nil {
				passErr = err
				return false
			}
			matches = append(matches, mt)
			return buy.RemainingQuantity > 0
		})
		return passErr == nil
	})
	if passErr != nil {
		return matches, passErr
	}

	if len(matches) > 0 {
		if err := m.updateStockPrice(ctx, repos, stockID, matches); err != nil {
			return matches, err
		}
	}
	return matches, nil
}

// execute fills buy and sell against each other for the smaller remaining
// quantity, records the trade and moves the shares between portfolios.
func (m *Matcher) execute(ctx context.Context, repos store.Repositories, stockID string, buy, sell *domain.Order) (Match, error) {
	qty := min(buy.RemainingQuantity, sell.RemainingQuantity)
	price := domain.Midpoint(buy.PricePerShare, sell.PricePerShare)

	if err := buy.Fill(qty); err != nil {
		return Match{}, err
	}
	if err := sell.Fill(qty); err != nil {
		return Match{}, err
	}
	if !m.feeRate.IsZero() {
		fee := m.feeRate.Of(price.Mul(qty))
		buy.AddFee(fee)
		sell.AddFee(fee)
	}

	if err := repos.Orders().Save(ctx, buy); err != nil {
		return Match{}, fmt.Errorf("save buy order %s: %w", buy.ID, err)
	}
	if err := repos.Orders().Save(ctx, sell); err != nil {
		return Match{}, fmt.Errorf("save sell order %s: %w", sell.ID, err)
	}

	trade := &domain.Trade{
		ID:          uuid.New().String(),
		StockID:     stockID,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		BuyerID:     buy.UserID,
		SellerID:    sell.UserID,
		Quantity:    qty,
		Price:       price,
		ExecutedAt:  time.Now().UTC(),
	}
	if err := repos.Trades().Append(ctx, trade); err != nil {
		return Match{}, fmt.Errorf("append trade: %w", err)
	}

	if err := settle(ctx, repos.Portfolios(), stockID, buy.UserID, sell.UserID, qty, price); err != nil {
		return Match{}, err
	}

	return Match{
		BuyOrder:  buy.Clone(),
		SellOrder: sell.Clone(),
		Quantity:  qty,
		Price:     price,
		TradeID:   trade.ID,
	}, nil
}

// settle moves qty shares from seller to buyer. The buyer's position is
// opened on first purchase.
func settle(ctx context.Context, portfolios store.PortfolioRepository, stockID, buyerID, sellerID string, qty int64, price domain.Money) error {
	seller, err := portfolios.FindByUserAndStock(ctx, sellerID, stockID)
	if errors.Is(err, domain.ErrPortfolioNotFound) {
		return fmt.Errorf("%w: seller %s holds no shares of %s", domain.ErrInsufficientShares, sellerID, stockID)
	}
	if err != nil {
		return fmt.Errorf("load seller portfolio: %w", err)
	}
	if err := seller.RemoveShares(qty); err != nil {
		return fmt.Errorf("settle seller %s: %w", sellerID, err)
	}
	if err := portfolios.Save(ctx, seller); err != nil {
		return fmt.Errorf("save seller portfolio: %w", err)
	}

	buyer, err := portfolios.FindByUserAndStock(ctx, buyerID, stockID)
	switch {
	case errors.Is(err, domain.ErrPortfolioNotFound):
		buyer, err = domain.NewPortfolio(buyerID, stockID, qty, price)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load buyer portfolio: %w", err)
	default:
		if err := buyer.AddShares(qty, price); err != nil {
			return fmt.Errorf("settle buyer %s: %w", buyerID, err)
		}
	}
	if err := portfolios.Save(ctx, buyer); err != nil {
		return fmt.Errorf("save buyer portfolio: %w", err)
	}
	return nil
}

// updateStockPrice sets the stock price to the VWAP of the pass. A stock
// that no longer exists is skipped.
func (m *Matcher) updateStockPrice(ctx context.Context, repos store.Repositories, stockID string, matches []Match) error {
	stock, err := repos.Stocks().FindByID(ctx, stockID)
	if errors.Is(err, domain.ErrStockNotFound) {
		m.logger.Warn("matched orders for unknown stock, price not updated", slog.String("stock_id", stockID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load stock: %w", err)
	}

	if err := stock.UpdatePrice(VWAP(matches)); err != nil {
		return err
	}
	if err := repos.Stocks().Save(ctx, stock); err != nil {
		return fmt.Errorf("save stock price: %w", err)
	}
	return nil
}

// VWAP returns Σ(price × quantity) / Σ quantity rounded to cents, or zero
// for no matches.
func VWAP(matches []Match) domain.Money {
	total := domain.ZeroMoney()
	var qty int64
	for _, mt := range matches {
		total = total.Add(mt.Value())
		qty += mt.Quantity
	}
	if qty == 0 {
		return domain.ZeroMoney()
	}
	return total.Per(qty)
}

func (m *Matcher) logAbortedPass(stockID string, attempted []Match, err error) {
	m.logger.Error("match pass aborted, fills discarded",
		slog.String("stock_id", stockID),
		slog.Int("attempted_fills", len(attempted)),
		slog.String("error", err.Error()),
	)
	for _, mt := range attempted {
		m.logger.Error("discarded fill",
			slog.String("stock_id", stockID),
			slog.String("buy_order_id", mt.BuyOrder.ID),
			slog.String("sell_order_id", mt.SellOrder.ID),
			slog.Int64("quantity", mt.Quantity),
			slog.String("price", mt.Price.String()),
		)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/store"
)

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	UserID        string
	StockID       string
	Type          domain.OrderType
	Quantity      int64
	PricePerShare domain.Money
}

// PlaceOrderResult is the placed order, as it stands after the
// automatic match pass, and the matches that pass produced.
type PlaceOrderResult struct {
	Order   *domain.Order
	Matches []engine.Match
}

// OrderService handles order placement, retrieval, and listing.
type OrderService struct {
	store     store.Store
	matcher   *engine.Matcher
	locks     *engine.StockLocks
	autoMatch bool
	logger    *slog.Logger
}

// NewOrderService creates a new OrderService. With autoMatch set, every
// placement is followed by a match pass on the order's stock.
func NewOrderService(st store.Store, matcher *engine.Matcher, locks *engine.StockLocks, autoMatch bool, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		store:     st,
		matcher:   matcher,
		locks:     locks,
		autoMatch: autoMatch,
		logger:    logger,
	}
}

// PlaceOrder validates the request, records a PENDING order and, when
// auto-match is on, runs a match pass for the stock.
//
// A sell is accepted only if the user's holdings, minus what their other
// active sells already offer, cover the quantity. The check and the save
// happen under the stock lock so two sells cannot both spend the same shares.
//
// A failed automatic match pass does not fail the placement: the order is
// stored and the error is logged; the next pass picks it up.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	if err := validateStockID(req.StockID); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("unknown order type: %s. Must be one of: BUY, SELL", req.Type),
		}
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return nil, err
	}
	if err := validatePrice("pricePerShare", req.PricePerShare); err != nil {
		return nil, err
	}

	stock, err := s.store.Stocks().FindByID(ctx, req.StockID)
	if err != nil {
		return nil, err
	}
	if !stock.IsAvailable() {
		return nil, domain.ErrStockUnavailable
	}

	order, err := domain.NewOrder(req.UserID, req.StockID, req.Type, req.Quantity, req.PricePerShare)
	if err != nil {
		return nil, err
	}

	if order.Type == domain.OrderTypeSell {
		err = s.placeSell(ctx, order)
	} else {
		err = s.store.Orders().Save(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	result := &PlaceOrderResult{Order: order, Matches: []engine.Match{}}
	if !s.autoMatch {
		return result, nil
	}

	matches, err := s.matcher.MatchOrders(ctx, order.StockID)
	if err != nil {
		s.logger.Error("automatic match pass failed",
			slog.String("order_id", order.ID),
			slog.String("stock_id", order.StockID),
			slog.String("error", err.Error()),
		)
		return result, nil
	}
	result.Matches = matches

	updated, err := s.store.Orders().Get(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order %s: %w", order.ID, err)
	}
	result.Order = updated
	return result, nil
}

func (s *OrderService) placeSell(ctx context.Context, order *domain.Order) error {
	mu := s.locks.Get(order.StockID)
	mu.Lock()
	defer mu.Unlock()

	available, err := s.availableShares(ctx, order.UserID, order.StockID)
	if err != nil {
		return err
	}
	if available < order.Quantity {
		return fmt.Errorf("%w: %d shares available to sell, %d requested",
			domain.ErrInsufficientShares, available, order.Quantity)
	}
	return s.store.Orders().Save(ctx, order)
}

// availableShares is the position size minus the remaining quantity of the
// user's active sells for the stock.
func (s *OrderService) availableShares(ctx context.Context, userID, stockID string) (int64, error) {
	var held int64
	p, err := s.store.Portfolios().FindByUserAndStock(ctx, userID, stockID)
	switch {
	case err == nil:
		held = p.Quantity
	case !errors.Is(err, domain.ErrPortfolioNotFound):
		return 0, err
	}

	sells, err := s.store.Orders().FindPendingByStock(ctx, stockID, domain.OrderTypeSell)
	if err != nil {
		return 0, err
	}
	for _, o := range sells {
		if o.UserID == userID {
			held -= o.RemainingQuantity
		}
	}
	return held, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.Orders().Get(ctx, orderID)
}

// ListOrders returns a page of a user's orders, newest first, with
// optional status filtering.
func (s *OrderService) ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if err := validateUserID(userID); err != nil {
		return nil, 0, err
	}
	if status != nil && !status.Valid() {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: PENDING, PARTIALLY_FILLED, FILLED", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if err := validateRange("limit", limit, 1, 100); err != nil {
		return nil, 0, err
	}

	return s.store.Orders().ListByUser(ctx, userID, status, page, limit)
}

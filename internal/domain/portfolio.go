package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// returnRateScale is the precision of a portfolio's return rate fraction.
const returnRateScale = 6

// Portfolio is a user's position in a single stock.
type Portfolio struct {
	ID                   string
	UserID               string
	StockID              string
	Quantity             int64
	AveragePurchasePrice Money
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewPortfolio opens a position of quantity shares bought at purchasePrice.
func NewPortfolio(userID, stockID string, quantity int64, purchasePrice Money) (*Portfolio, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative, got %d", ErrInvalidQuantity, quantity)
	}
	if purchasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: purchase price must not be negative", ErrInvalidPrice)
	}
	now := time.Now().UTC()
	return &Portfolio{
		ID:                   uuid.New().String(),
		UserID:               userID,
		StockID:              stockID,
		Quantity:             quantity,
		AveragePurchasePrice: purchasePrice,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// AddShares adds quantity shares bought at price and recomputes the
// quantity-weighted average purchase price.
func (p *Portfolio) AddShares(quantity int64, price Money) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	if p.Quantity > math.MaxInt64-quantity {
		return fmt.Errorf("%w: adding %d shares to %d overflows the position", ErrInvalidQuantity, quantity, p.Quantity)
	}
	total := p.Quantity + quantity
	cost := p.AveragePurchasePrice.Mul(p.Quantity).Add(price.Mul(quantity))
	p.AveragePurchasePrice = cost.DivQuantity(total)
	p.Quantity = total
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveShares sells quantity shares. The average purchase price is unchanged.
func (p *Portfolio) RemoveShares(quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	if quantity > p.Quantity {
		return fmt.Errorf("%w: cannot remove %d shares, holding %d", ErrInsufficientShares, quantity, p.Quantity)
	}
	p.Quantity -= quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// TotalValue returns quantity × currentPrice.
func (p *Portfolio) TotalValue(currentPrice Money) Money {
	return currentPrice.Mul(p.Quantity)
}

// GainLoss returns (currentPrice − averagePurchasePrice) × quantity.
func (p *Portfolio) GainLoss(currentPrice Money) Money {
	return currentPrice.Sub(p.AveragePurchasePrice).Mul(p.Quantity)
}

// ReturnRate returns the gain or loss relative to the cost basis. An empty
// or zero-cost position has a zero return.
func (p *Portfolio) ReturnRate(currentPrice Money) Percentage {
	cost := p.AveragePurchasePrice.Mul(p.Quantity)
	if cost.IsZero() {
		return NewPercentage(decimal.Zero)
	}
	gain := p.GainLoss(currentPrice)
	return NewPercentage(gain.Decimal().DivRound(cost.Decimal(), returnRateScale))
}

// Clone returns a copy that can be mutated independently.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	return &c
}

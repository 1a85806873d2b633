package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderType distinguishes buy orders from sell orders.
type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// Valid reports whether t is one of the known order types.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeBuy, OrderTypeSell:
		return true
	}
	return false
}

// Opposite returns the side an order of type t trades against.
func (t OrderType) Opposite() OrderType {
	if t == OrderTypeBuy {
		return OrderTypeSell
	}
	return OrderTypeBuy
}

// OrderStatus represents the lifecycle state of an order. Orders only move
// forward: pending → partially filled → filled.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPartiallyFilled, OrderStatusFilled:
		return true
	}
	return false
}

// Order represents a single buy or sell intent for a stock.
type Order struct {
	ID                string
	UserID            string
	StockID           string
	Type              OrderType
	Quantity          int64
	PricePerShare     Money
	RemainingQuantity int64
	Fees              Money
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MaxQuantity bounds the share count of a single order or grant.
const MaxQuantity int64 = 1_000_000_000

// NewOrder creates a pending order with its full quantity outstanding.
func NewOrder(userID, stockID string, typ OrderType, quantity int64, pricePerShare Money) (*Order, error) {
	if !typ.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown order type: %s. Must be one of: BUY, SELL", typ)}
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	if quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: quantity must not exceed %d, got %d", ErrInvalidQuantity, MaxQuantity, quantity)
	}
	if !pricePerShare.IsPositive() {
		return nil, fmt.Errorf("%w: price per share must be positive, got %s", ErrInvalidPrice, pricePerShare)
	}

	now := time.Now().UTC()
	return &Order{
		ID:                uuid.New().String(),
		UserID:            userID,
		StockID:           stockID,
		Type:              typ,
		Quantity:          quantity,
		PricePerShare:     pricePerShare,
		RemainingQuantity: quantity,
		Fees:              ZeroMoney(),
		Status:            OrderStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Fill executes quantity shares of the order. It fails with ErrInvalidFill
// when quantity is not positive or exceeds the remaining quantity, leaving
// the order untouched.
func (o *Order) Fill(quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: fill quantity must be positive, got %d", ErrInvalidFill, quantity)
	}
	if quantity > o.RemainingQuantity {
		return fmt.Errorf("%w: fill of %d exceeds remaining %d on order %s",
			ErrInvalidFill, quantity, o.RemainingQuantity, o.ID)
	}

	o.RemainingQuantity -= quantity
	if o.RemainingQuantity == 0 {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// AddFee accumulates a trading fee charged on a fill.
func (o *Order) AddFee(fee Money) {
	o.Fees = o.Fees.Add(fee)
}

// FilledQuantity returns how many shares have been executed so far.
func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}

// IsActive reports whether the order can still trade.
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartiallyFilled
}

// Clone returns a copy that can be mutated independently.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

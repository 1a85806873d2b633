package domain

import "time"

// Trade records one execution between a buy and a sell order.
type Trade struct {
	ID          string
	StockID     string
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Quantity    int64
	Price       Money
	ExecutedAt  time.Time
}

// Value returns price × quantity.
func (t *Trade) Value() Money {
	return t.Price.Mul(t.Quantity)
}

package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)

// StockStatus says whether a stock accepts new orders.
type StockStatus string

const (
	StockStatusAvailable   StockStatus = "AVAILABLE"
	StockStatusUnavailable StockStatus = "UNAVAILABLE"
)

// Valid reports whether s is one of the known stock statuses.
func (s StockStatus) Valid() bool {
	return s == StockStatusAvailable || s == StockStatusUnavailable
}

// Stock is a tradable instrument. CurrentPrice is nil until the first
// trade or an explicit price update.
type Stock struct {
	ID           string
	Symbol       string
	CompanyName  string
	Status       StockStatus
	CurrentPrice *Money
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeSymbol upper-cases and validates a ticker symbol.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRegex.MatchString(s) {
		return "", &ValidationError{Message: "symbol must match ^[A-Z]{1,10}$"}
	}
	return s, nil
}

// NewStock creates an available stock with no price.
func NewStock(symbol, companyName string) (*Stock, error) {
	s, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(companyName)
	if name == "" || len(name) > 200 {
		return nil, &ValidationError{Message: "companyName must be between 1 and 200 characters"}
	}
	now := time.Now().UTC()
	return &Stock{
		ID:          uuid.New().String(),
		Symbol:      s,
		CompanyName: name,
		Status:      StockStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdatePrice sets the reference price. Prices must be positive.
func (s *Stock) UpdatePrice(price Money) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: stock price must be positive, got %s", ErrInvalidPrice, price)
	}
	p := price
	s.CurrentPrice = &p
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SetStatus changes whether the stock accepts new orders.
func (s *Stock) SetStatus(status StockStatus) error {
	if !status.Valid() {
		return &ValidationError{Message: "status must be one of: AVAILABLE, UNAVAILABLE"}
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// IsAvailable reports whether new orders may be placed.
func (s *Stock) IsAvailable() bool {
	return s.Status == StockStatusAvailable
}

// PriceOrZero returns the current price, or zero when none is set.
func (s *Stock) PriceOrZero() Money {
	if s.CurrentPrice == nil {
		return ZeroMoney()
	}
	return *s.CurrentPrice
}

// Clone returns a copy that can be mutated independently.
func (s *Stock) Clone() *Stock {
	c := *s
	if s.CurrentPrice != nil {
		p := *s.CurrentPrice
		c.CurrentPrice = &p
	}
	return &c
}

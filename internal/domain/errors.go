package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrStockNotFound      = errors.New("stock_not_found")
	ErrStockAlreadyExists = errors.New("stock_already_exists")
	ErrStockUnavailable   = errors.New("stock_unavailable")
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrPortfolioNotFound  = errors.New("portfolio_not_found")
	ErrInvalidFill        = errors.New("invalid_fill")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidPrice       = errors.New("invalid_price")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

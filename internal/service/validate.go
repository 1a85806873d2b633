package service

import (
	"fmt"
	"regexp"

	"github.com/efreitasn/stockmatch/internal/domain"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func validateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return &domain.ValidationError{Message: "userId must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return nil
}

func validateStockID(stockID string) error {
	if stockID == "" {
		return &domain.ValidationError{Message: "stockId is required"}
	}
	return nil
}

func validateQuantity(q int64) error {
	if q <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if q > domain.MaxQuantity {
		return &domain.ValidationError{Message: fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantity)}
	}
	return nil
}

// validatePrice checks that a price is positive, within range and
// representable in cents.
func validatePrice(field string, p domain.Money) error {
	if err := p.CheckMagnitude(); err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("%s is out of range: %v", field, err)}
	}
	if !p.IsPositive() {
		return &domain.ValidationError{Message: fmt.Sprintf("%s must be greater than 0", field)}
	}
	if !p.Equal(p.Round()) {
		return &domain.ValidationError{Message: fmt.Sprintf("%s must have at most %d decimal places", field, domain.MoneyScale)}
	}
	return nil
}

// validateAmount is validatePrice for amounts that may be zero.
func validateAmount(field string, m domain.Money) error {
	if err := m.CheckMagnitude(); err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("%s is out of range: %v", field, err)}
	}
	if m.IsNegative() || !m.Equal(m.Round()) {
		return &domain.ValidationError{Message: fmt.Sprintf("%s must be a non-negative amount with at most %d decimal places", field, domain.MoneyScale)}
	}
	return nil
}

func validateRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &domain.ValidationError{Message: fmt.Sprintf("%s must be between %d and %d", field, lo, hi)}
	}
	return nil
}

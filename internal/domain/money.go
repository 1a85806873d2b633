package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places an instrument price carries.
const MoneyScale = 2

// averageScale is the precision kept for weighted-average prices, which
// are generally not representable in cents.
const averageScale = 4

// maxIntegerDigits bounds the integer part of an accepted amount, so every
// amount is below 1e12.
const maxIntegerDigits = 12

// maxFractionDigits bounds how many decimal places an accepted amount may
// spell out, trailing zeros included.
const maxFractionDigits = 16

// maxCoefficientBits bounds the unscaled coefficient. Anything longer has
// more than 28 digits and so fails the integer bound for any accepted
// exponent.
const maxCoefficientBits = 96

var two = decimal.NewFromInt(2)

var (
	errAmountTooLarge   = fmt.Errorf("amount must be less than 1e%d", maxIntegerDigits)
	errAmountTooPrecise = fmt.Errorf("amount must have at most %d decimal digits", maxFractionDigits)
)

// checkMagnitude bounds an amount using only its exponent and digit count,
// so absurd inputs such as 1e5000000 are refused before any rescaling.
func checkMagnitude(d decimal.Decimal) error {
	exp := int(d.Exponent())
	switch {
	case exp > maxIntegerDigits:
		return errAmountTooLarge
	case exp < -maxFractionDigits:
		return errAmountTooPrecise
	case d.Coefficient().BitLen() > maxCoefficientBits:
		return errAmountTooLarge
	case !d.IsZero() && d.NumDigits()+exp > maxIntegerDigits:
		return errAmountTooLarge
	}
	return nil
}

// Money is an immutable fixed-point currency amount. Arithmetic never goes
// through float64. Compare values with Equal or Cmp, not ==.
type Money struct {
	amount decimal.Decimal
}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d}
}

// MoneyFromInt returns a whole-unit amount.
func MoneyFromInt(units int64) Money {
	return Money{amount: decimal.NewFromInt(units)}
}

// MoneyFromCents converts an amount in minor units (cents).
func MoneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -MoneyScale)}
}

// ZeroMoney returns a zero amount.
func ZeroMoney() Money {
	return Money{amount: decimal.Zero}
}

// ParseMoney parses a decimal string such as "148.50". It rejects values
// with more than 2 significant decimal places and values of 1e12 or more.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid monetary value %q", s)
	}
	if err := checkMagnitude(d); err != nil {
		return Money{}, fmt.Errorf("invalid monetary value %q: %w", s, err)
	}
	if !d.Equal(d.Round(MoneyScale)) {
		return Money{}, fmt.Errorf("monetary values must have at most %d decimal places", MoneyScale)
	}
	return Money{amount: d}, nil
}

// Midpoint returns (a + b) / 2 rounded to instrument precision.
func Midpoint(a, b Money) Money {
	return Money{amount: a.amount.Add(b.amount).Div(two)}.Round()
}

func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount)}
}

func (m Money) Sub(o Money) Money {
	return Money{amount: m.amount.Sub(o.amount)}
}

// Mul multiplies the amount by a share quantity.
func (m Money) Mul(quantity int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(quantity))}
}

// DivQuantity divides the amount by a share quantity, keeping the
// precision used for average prices. quantity must be non-zero.
func (m Money) DivQuantity(quantity int64) Money {
	return Money{amount: m.amount.DivRound(decimal.NewFromInt(quantity), averageScale)}
}

// Per divides the amount by a share quantity and rounds to instrument
// precision in one step. quantity must be non-zero.
func (m Money) Per(quantity int64) Money {
	return Money{amount: m.amount.DivRound(decimal.NewFromInt(quantity), MoneyScale)}
}

// Round rounds half away from zero to MoneyScale places.
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(MoneyScale)}
}

func (m Money) Cmp(o Money) int {
	return m.amount.Cmp(o.amount)
}

func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

func (m Money) LessThan(o Money) bool {
	return m.amount.LessThan(o.amount)
}

func (m Money) GreaterThan(o Money) bool {
	return m.amount.GreaterThan(o.amount)
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// CheckMagnitude reports whether the amount lies outside the accepted
// range. Amounts built from JSON or ParseMoney always pass.
func (m Money) CheckMagnitude() error {
	return checkMagnitude(m.amount)
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// Cents returns the amount in minor units, rounding to instrument precision.
func (m Money) Cents() int64 {
	return m.amount.Shift(MoneyScale).Round(0).IntPart()
}

// String renders at least two decimal places, more when the value carries
// them (average prices).
func (m Money) String() string {
	if m.amount.Equal(m.amount.Round(MoneyScale)) {
		return m.amount.StringFixed(MoneyScale)
	}
	return m.amount.String()
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts a decimal string or a JSON number whose magnitude
// is below 1e12.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid monetary value: %w", err)
	}
	if err := checkMagnitude(d); err != nil {
		return fmt.Errorf("invalid monetary value: %w", err)
	}
	m.amount = d
	return nil
}

// Value implements driver.Valuer; amounts are stored as TEXT.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	m.amount = d
	return nil
}

// Percentage is an immutable rate stored as a decimal fraction:
// 2.5% is held as 0.025.
type Percentage struct {
	fraction decimal.Decimal
}

// NewPercentage builds a rate from its decimal fraction.
func NewPercentage(fraction decimal.Decimal) Percentage {
	return Percentage{fraction: fraction}
}

// PercentageFromPercent builds a rate from a human percent number (2.5 → 0.025).
func PercentageFromPercent(percent decimal.Decimal) Percentage {
	return Percentage{fraction: percent.Shift(-2)}
}

// ParsePercent parses a human percent string such as "0.25".
func ParsePercent(s string) (Percentage, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percentage{}, fmt.Errorf("invalid percentage %q", s)
	}
	return PercentageFromPercent(d), nil
}

// ToDecimal returns the fraction the rate was built from.
func (p Percentage) ToDecimal() decimal.Decimal {
	return p.fraction
}

// ToPercent returns the rate as a percent number.
func (p Percentage) ToPercent() decimal.Decimal {
	return p.fraction.Shift(2)
}

func (p Percentage) IsZero() bool {
	return p.fraction.IsZero()
}

// Of applies the rate to an amount, rounded to instrument precision.
func (p Percentage) Of(m Money) Money {
	return Money{amount: m.amount.Mul(p.fraction)}.Round()
}

func (p Percentage) String() string {
	return p.ToPercent().String() + "%"
}

// MarshalJSON encodes the rate as a percent string ("2.5").
func (p Percentage) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.ToPercent().String())), nil
}

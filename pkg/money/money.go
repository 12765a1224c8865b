// Package money converts parsed decimal amounts into integer minor units
// with ISO-4217 currency awareness.
package money

import (
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	BRL = "BRL" // Brazilian Real
	JPY = "JPY" // Japanese Yen (no decimal places)
	CHF = "CHF" // Swiss Franc
)

var ErrUnknownCurrency = errors.New("unknown currency code")

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, currencyCode)}
}

// NewFromDecimal rounds amount to the currency's fraction digits.
// Unknown currency codes return ErrUnknownCurrency.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) (*Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	currency := money.GetCurrency(code)
	if currency == nil {
		return nil, ErrUnknownCurrency
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()

	return New(minor, code), nil
}

// Valid reports whether code is a known ISO-4217 currency.
func Valid(code string) bool {
	return money.GetCurrency(strings.ToUpper(strings.TrimSpace(code))) != nil
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsNegative() bool {
	return m.Amount() < 0
}

// Add returns the sum of two values of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: sum}, nil
}

// Display returns a formatted string for display (e.g., "€1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

// ToDecimal converts back to decimal.Decimal
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	d := decimal.NewFromInt(m.m.Amount())
	return d.Shift(-int32(m.m.Currency().Fraction))
}

// Totals splits amounts into money in and money out.
// Out is returned as a negative value.
func Totals(amounts []decimal.Decimal, currencyCode string) (in, out *Money, err error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if !Valid(code) {
		return nil, nil, ErrUnknownCurrency
	}

	in, out = New(0, code), New(0, code)
	for _, a := range amounts {
		v, err := NewFromDecimal(a, code)
		if err != nil {
			return nil, nil, err
		}
		if v.IsNegative() {
			out, err = out.Add(v)
		} else {
			in, err = in.Add(v)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return in, out, nil
}

package service

import (
	"strings"

	"github.com/FACorreiaa/budget-tracker/pkg/money"
)

// resolveCurrency picks the currency for stored amounts: the requested code,
// then the hint found in the file, then the service default.
func resolveCurrency(requested, hint, fallback string) (string, error) {
	for _, code := range []string{requested, hint, fallback} {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if !money.Valid(code) {
			return "", &CurrencyError{Code: code}
		}
		return code, nil
	}
	return "", &CurrencyError{}
}

// CurrencyError reports a missing or unknown currency code.
type CurrencyError struct {
	Code string
}

func (e *CurrencyError) Error() string {
	if e.Code == "" {
		return "currency code not found; provide one in the request"
	}
	return "invalid currency code: " + e.Code
}

func (e *CurrencyError) Unwrap() error {
	return ErrInvalidRequest
}

// Package normalizer handles regional money and date parsing.
// Converts the many ways banks write amounts and dates into one canonical representation.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount format")
	ErrInvalidDate          = errors.New("invalid date format")
	ErrNoAmount             = errors.New("no amount in debit or credit column")
	ErrAmbiguousDebitCredit = errors.New("both debit and credit columns populated")
)

// currencySymbols are stripped before any separator analysis
const currencySymbols = "$£€¥"

var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

// ParseAmount converts a raw amount cell into a signed decimal.
// It accepts both European (1.234,56) and American (1,234.56) grouping without
// being told which one the file uses: when both separators appear, the one that
// occurs last is the decimal separator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(currencySymbols, r) {
			return -1
		}
		return r
	}, raw)

	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = normalizeSeparators(s)
	if !numberPattern.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.TrimSuffix(s, ".")

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if negative {
		amount = amount.Abs().Neg()
	}
	return amount, nil
}

// normalizeSeparators rewrites s so that '.' is the only (decimal) separator.
func normalizeSeparators(s string) string {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ConsolidateDebitCredit merges separate debit and credit cells into a single signed amount.
// Debit = negative (money out), Credit = positive (money in). The returned string is
// the raw cell the amount was read from, for error reporting.
func ConsolidateDebitCredit(debitStr, creditStr string) (decimal.Decimal, string, error) {
	debitStr = strings.TrimSpace(debitStr)
	creditStr = strings.TrimSpace(creditStr)

	switch {
	case debitStr != "" && creditStr != "":
		return decimal.Zero, debitStr + " / " + creditStr, ErrAmbiguousDebitCredit
	case debitStr != "":
		amount, err := ParseAmount(debitStr)
		if err != nil {
			return decimal.Zero, debitStr, err
		}
		return amount.Abs().Neg(), debitStr, nil
	case creditStr != "":
		amount, err := ParseAmount(creditStr)
		if err != nil {
			return decimal.Zero, creditStr, err
		}
		return amount, creditStr, nil
	}

	return decimal.Zero, "", ErrNoAmount
}

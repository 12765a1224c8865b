package sniffer

import (
	"strings"
	"unicode"

	"github.com/FACorreiaa/budget-tracker/pkg/money"
)

var currencyHeaderKeywords = []string{"currency", "moeda", "moneda", "divisa", "devise", "valuta", "währung"}

// CurrencyColumn returns the index of a header naming a currency column, or -1.
func CurrencyColumn(headers []string) int {
	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}
		for _, kw := range currencyHeaderKeywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

// currencyFromSymbol maps a currency symbol found in an amount cell to its code.
// "R$" is checked before the bare dollar sign.
func currencyFromSymbol(cell string) (string, bool) {
	switch {
	case strings.Contains(cell, "€"):
		return money.EUR, true
	case strings.Contains(cell, "£"):
		return money.GBP, true
	case strings.Contains(cell, "¥"), strings.Contains(cell, "￥"):
		return money.JPY, true
	case strings.Contains(cell, "R$"):
		return money.BRL, true
	case strings.Contains(cell, "$"):
		return money.USD, true
	}
	return "", false
}

// currencyFromCode returns the single ISO-4217 code that appears in value as a
// whole token. Substrings of words ("EUROPCAR") never match.
func currencyFromCode(value string) (string, bool) {
	tokens := strings.FieldsFunc(strings.ToUpper(value), func(r rune) bool {
		switch r {
		case ';', ',', '\t', '|', '-', ':', '/', '(', ')', '"', '\'':
			return true
		}
		return unicode.IsSpace(r)
	})

	var found string
	for _, token := range tokens {
		if !isCurrencyCode(token) {
			continue
		}
		if found != "" && found != token {
			return "", false
		}
		found = token
	}
	return found, found != ""
}

func isCurrencyCode(value string) bool {
	if len(value) != 3 {
		return false
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return money.Valid(value)
}

// detectCurrency looks for a currency in sample rows. Symbols in the amount
// cells win, then codes in the currency column, then codes in the amount cells.
// Descriptions and other free text are never inspected.
func detectCurrency(rows [][]string, amountIdx []int, currencyIdx int) string {
	cells := func(idx []int, fn func(string) (string, bool)) string {
		for _, row := range rows {
			for _, i := range idx {
				if i < 0 || i >= len(row) {
					continue
				}
				if code, ok := fn(row[i]); ok {
					return code
				}
			}
		}
		return ""
	}

	if code := cells(amountIdx, currencyFromSymbol); code != "" {
		return code
	}
	if currencyIdx >= 0 {
		if code := cells([]int{currencyIdx}, func(v string) (string, bool) {
			if code, ok := currencyFromCode(v); ok {
				return code, true
			}
			return currencyFromSymbol(v)
		}); code != "" {
			return code
		}
	}
	return cells(amountIdx, currencyFromCode)
}

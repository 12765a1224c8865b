// Package sniffer detects the layout of a bank CSV export: its delimiter,
// which column holds which field, and a fingerprint for recognising the bank next time.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// candidateDelimiters in tie-break order.
var candidateDelimiters = []rune{';', '\t', ',', '|'}

// DetectDelimiter picks the delimiter that occurs most often on the header line.
// Delimiters inside double quotes are ignored. Defaults to ','.
func DetectDelimiter(line string) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// Fingerprint hashes the normalized header names so that exports from the same
// bank produce the same value regardless of case, spacing or punctuation.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// Dialect describes the regional formatting observed in sample rows.
// It is informational: amounts and dates are parsed without it.
type Dialect struct {
	DecimalSeparator string  `json:"decimal_separator"`
	DateOrder        string  `json:"date_order"`
	CurrencyHint     string  `json:"currency_hint,omitempty"`
	Confidence       float64 `json:"confidence"`
}

// DialectColumns names the columns ProbeDialect reads. Amounts holds the
// amount column, or the debit and credit columns of a double-entry file.
// Currency is -1 when the file has no currency column.
type DialectColumns struct {
	Amounts  []int
	Date     int
	Currency int
}

// ProbeDialect inspects the amount, date and currency cells of sample rows.
func ProbeDialect(rows [][]string, cols DialectColumns) Dialect {
	dialect := Dialect{DecimalSeparator: ".", DateOrder: "MM/DD", Confidence: 0.5}

	european, american := 0, 0
	dayFirst, monthFirst := false, false

	for _, row := range rows {
		for _, idx := range cols.Amounts {
			if idx < 0 || idx >= len(row) {
				continue
			}
			switch amountStyle(row[idx]) {
			case 1:
				european++
			case -1:
				american++
			}
		}

		if cols.Date >= 0 && cols.Date < len(row) && row[cols.Date] != "" {
			switch dateStyle(row[cols.Date]) {
			case 1:
				dayFirst = true
			case -1:
				monthFirst = true
			}
		}
	}

	dialect.CurrencyHint = detectCurrency(rows, cols.Amounts, cols.Currency)

	if european > american {
		dialect.DecimalSeparator = ","
		dialect.DateOrder = "DD/MM"
	}
	if total := european + american; total > 0 {
		dialect.Confidence = float64(max(european, american)) / float64(total)
	}

	switch {
	case dayFirst && !monthFirst:
		dialect.DateOrder = "DD/MM"
	case monthFirst && !dayFirst:
		dialect.DateOrder = "MM/DD"
	}

	return dialect
}

// amountStyle returns 1 for European grouping, -1 for US grouping, 0 when unclear.
func amountStyle(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)

	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			return 1
		}
		return -1
	case comma >= 0:
		if len(cleaned)-comma-1 <= 2 {
			return 1
		}
	case dot >= 0:
		if len(cleaned)-dot-1 <= 2 {
			return -1
		}
	}
	return 0
}

// dateStyle returns 1 when the first component can only be a day,
// -1 when the second component can only be a day, 0 otherwise.
func dateStyle(val string) int {
	parts := strings.FieldsFunc(val, func(r rune) bool {
		return r == '/' || r == '.' || r == '-'
	})
	if len(parts) < 3 || len(parts[0]) == 4 {
		return 0
	}

	first, second := leadingNumber(parts[0]), leadingNumber(parts[1])
	switch {
	case first > 12 && first <= 31:
		return 1
	case second > 12 && second <= 31:
		return -1
	}
	return 0
}

func leadingNumber(s string) int {
	n := 0
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Package parser turns delimited bank statement text into normalized transactions.
// It splits lines with a quote-aware scanner, applies a column mapping, normalizes
// amounts and dates, and stamps every row with its duplicate-detection hash.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/dedup"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
)

var (
	ErrEmptyContent     = errors.New("file content is empty")
	ErrInvalidDelimiter = errors.New("delimiter must be one of ',', ';', '\\t' or '|'")
)

// Config is the immutable parser configuration.
type Config struct {
	Delimiter rune // Field delimiter
	HasHeader bool // First line holds column names and is not a transaction
}

// DefaultConfig returns a comma-delimited config with a header row.
func DefaultConfig() Config {
	return Config{
		Delimiter: ',',
		HasHeader: true,
	}
}

// Validate checks that the delimiter is supported.
func (c Config) Validate() error {
	switch c.Delimiter {
	case ',', ';', '\t', '|':
		return nil
	}
	return ErrInvalidDelimiter
}

// ParsedTransaction is a normalized row ready for duplicate checks and persistence.
type ParsedTransaction struct {
	Date           string          `json:"date"` // YYYY-MM-DD
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"` // Negative = money out
	SourceCategory string          `json:"source_category,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Hash           string          `json:"hash"`
	Line           int             `json:"line"` // 1-based line in the source file
}

// Result holds the valid transactions and one error message per rejected row.
type Result struct {
	Transactions []ParsedTransaction
	Errors       []string
	TotalRows    int // Non-blank data rows, valid or not
}

// Parser is safe for concurrent use; it holds only its configuration.
type Parser struct {
	config Config
}

// New creates a parser with the given configuration.
func New(config Config) (*Parser, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Parser{config: config}, nil
}

// Config returns the parser configuration.
func (p *Parser) Config() Config {
	return p.config
}

// SplitLines splits content on '\n', dropping a trailing '\r' from each line
// and a UTF-8 BOM from the first.
func SplitLines(content string) []string {
	content = strings.TrimPrefix(content, "\uFEFF")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ParseHeaders splits the first line of content into trimmed column names.
func (p *Parser) ParseHeaders(content string) []string {
	if strings.TrimSpace(content) == "" {
		return []string{}
	}
	return p.ParseLine(SplitLines(content)[0])
}

// ParseLine splits one line into trimmed fields.
//
// A double quote toggles quoted mode, except that two quotes inside a quoted
// field produce one literal quote. The delimiter only ends a field outside quotes.
func (p *Parser) ParseLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == p.config.Delimiter && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	return append(fields, strings.TrimSpace(current.String()))
}

// ParseTransactions normalizes every data row of content using mapping.
//
// An empty content or an incomplete mapping fails the whole call. Otherwise each
// row either becomes a transaction or contributes exactly one "Line N: ..." message
// to Result.Errors, and processing always continues with the next row.
func (p *Parser) ParseTransactions(content string, mapping sniffer.ColumnMapping, sourceID int64) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	lines := SplitLines(content)
	result := &Result{
		Transactions: make([]ParsedTransaction, 0, len(lines)),
		Errors:       make([]string, 0),
	}

	start := 0
	if p.config.HasHeader {
		start = 1
	}

	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		result.TotalRows++
		lineNum := i + 1

		tx, msg := p.parseRow(p.ParseLine(lines[i]), mapping, sourceID)
		if msg != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Line %d: %s", lineNum, msg))
			continue
		}
		tx.Line = lineNum
		result.Transactions = append(result.Transactions, tx)
	}

	return result, nil
}

// parseRow converts the fields of one row, returning a user-facing message on failure.
func (p *Parser) parseRow(fields []string, mapping sniffer.ColumnMapping, sourceID int64) (ParsedTransaction, string) {
	rawDate := cell(fields, mapping.Date)
	description := cell(fields, mapping.Description)

	var (
		rawAmount, rawDebit, rawCredit string
		hasAmount                      bool
	)
	if mapping.IsDoubleEntry() {
		rawDebit = cell(fields, mapping.Debit)
		rawCredit = cell(fields, mapping.Credit)
		hasAmount = rawDebit != "" || rawCredit != ""
	} else {
		rawAmount = cell(fields, mapping.Amount)
		hasAmount = rawAmount != ""
	}

	if rawDate == "" || description == "" || !hasAmount {
		return ParsedTransaction{}, "Missing required fields (date, description, amount)"
	}

	var (
		amount decimal.Decimal
		err    error
	)
	if mapping.IsDoubleEntry() {
		amount, rawAmount, err = normalizer.ConsolidateDebitCredit(rawDebit, rawCredit)
	} else {
		amount, err = normalizer.ParseAmount(rawAmount)
	}
	switch {
	case errors.Is(err, normalizer.ErrAmbiguousDebitCredit):
		return ParsedTransaction{}, "Both debit and credit populated: " + rawAmount
	case err != nil:
		return ParsedTransaction{}, "Invalid amount: " + rawAmount
	}

	date, err := normalizer.ParseDate(rawDate)
	if err != nil {
		return ParsedTransaction{}, "Invalid date: " + rawDate
	}

	return ParsedTransaction{
		Date:           date,
		Description:    description,
		Amount:         amount,
		SourceCategory: cell(fields, mapping.SourceCategory),
		Notes:          cell(fields, mapping.Notes),
		Hash:           dedup.Hash(sourceID, date, description, amount),
	}, ""
}

// cell returns the trimmed field at idx, or "" when idx is unmapped or out of range.
func cell(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

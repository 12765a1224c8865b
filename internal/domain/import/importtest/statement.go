// Package importtest generates realistic bank statement files for tests.
package importtest

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// Layout describes how a bank writes its export.
type Layout struct {
	Delimiter   rune
	DateFormat  string // Go reference layout
	European    bool   // 1.234,56 amounts
	DoubleEntry bool   // separate debit and credit columns
	Headers     []string
}

var (
	// English single-amount export.
	LayoutEN = Layout{
		Delimiter:  ',',
		DateFormat: "2006-01-02",
		Headers:    []string{"Date", "Description", "Amount", "Category"},
	}

	// Portuguese export with debit/credit columns.
	LayoutPT = Layout{
		Delimiter:   ';',
		DateFormat:  "02/01/2006",
		European:    true,
		DoubleEntry: true,
		Headers:     []string{"Data mov.", "Descrição", "Débito", "Crédito", "Categoria"},
	}

	// German single-amount export.
	LayoutDE = Layout{
		Delimiter:  ';',
		DateFormat: "02.01.2006",
		European:   true,
		Headers:    []string{"Buchungstag", "Verwendungszweck", "Betrag", "Kategorie"},
	}
)

// Row is one generated statement line and the values a parser should recover.
type Row struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
}

// ISODate returns the expected normalized date.
func (r Row) ISODate() string {
	return r.Date.Format("2006-01-02")
}

// Generator produces statements with gofakeit.
type Generator struct {
	faker *gofakeit.Faker
	from  time.Time
	to    time.Time
}

// NewGenerator creates a generator with a fixed seed and a 2024 date range.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		from:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		to:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

var categories = []string{"Groceries", "Transport", "Restaurants", "Utilities", "Shopping", "Salary"}

// Row returns a random expense or income line.
func (g *Generator) Row() Row {
	cents := int64(g.faker.Number(1, 250000))
	if g.faker.Number(0, 3) > 0 {
		cents = -cents
	}

	return Row{
		Date:        g.faker.DateRange(g.from, g.to).Truncate(24 * time.Hour),
		Description: strings.ToUpper(g.faker.Company()),
		Amount:      decimal.New(cents, -2),
		Category:    categories[g.faker.Number(0, len(categories)-1)],
	}
}

// Rows returns n random lines.
func (g *Generator) Rows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = g.Row()
	}
	return rows
}

// Statement renders rows as file content in the given layout, header first.
func Statement(layout Layout, rows []Row) string {
	var b strings.Builder
	b.WriteString(joinFields(layout.Headers, layout.Delimiter))
	b.WriteByte('\n')

	for _, r := range rows {
		fields := []string{r.Date.Format(layout.DateFormat), r.Description}
		if layout.DoubleEntry {
			debit, credit := "", formatAmount(r.Amount, layout.European)
			if r.Amount.IsNegative() {
				debit, credit = formatAmount(r.Amount.Abs(), layout.European), ""
			}
			fields = append(fields, debit, credit)
		} else {
			fields = append(fields, formatAmount(r.Amount, layout.European))
		}
		fields = append(fields, r.Category)

		b.WriteString(joinFields(fields, layout.Delimiter))
		b.WriteByte('\n')
	}
	return b.String()
}

func joinFields(fields []string, delimiter rune) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		if strings.ContainsRune(f, delimiter) || strings.ContainsAny(f, "\",") {
			f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		quoted[i] = f
	}
	return strings.Join(quoted, string(delimiter))
}

// formatAmount writes d with thousands grouping in the requested convention.
func formatAmount(d decimal.Decimal, european bool) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	thousands, decimalSep := ",", "."
	if european {
		thousands, decimalSep = ".", ","
	}

	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteString(thousands)
		}
		grouped.WriteRune(c)
	}

	out := grouped.String() + decimalSep + frac
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

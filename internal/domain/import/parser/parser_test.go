package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/dedup"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/importtest"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
)

func newParser(t testing.TB, cfg Config) *Parser {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func singleAmountMapping() sniffer.ColumnMapping {
	m := sniffer.EmptyMapping()
	m.Date, m.Description, m.Amount = 0, 1, 2
	return m
}

func TestNew(t *testing.T) {
	for _, d := range []rune{',', ';', '\t', '|'} {
		_, err := New(Config{Delimiter: d})
		assert.NoError(t, err, string(d))
	}

	_, err := New(Config{Delimiter: ':'})
	assert.ErrorIs(t, err, ErrInvalidDelimiter)

	_, err = New(Config{})
	assert.ErrorIs(t, err, ErrInvalidDelimiter)
}

func TestParser_ParseLine(t *testing.T) {
	p := newParser(t, DefaultConfig())

	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"trims fields", " a , b ,c ", []string{"a", "b", "c"}},
		{"quoted delimiter", `"Description, Details",Amount`, []string{"Description, Details", "Amount"}},
		{"escaped quote", `"He said ""hi""",1`, []string{`He said "hi"`, "1"}},
		{"empty fields", "a,,c,", []string{"a", "", "c", ""}},
		{"single field", "only", []string{"only"}},
		{"empty line", "", []string{""}},
		{"quotes mid field", `ab"c,d"e,f`, []string{"abc,de", "f"}},
		{"unterminated quote keeps the rest", `"a,b`, []string{"a,b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ParseLine(tt.line))
		})
	}

	t.Run("semicolon delimiter", func(t *testing.T) {
		p := newParser(t, Config{Delimiter: ';', HasHeader: true})
		assert.Equal(t, []string{"1,50", "Café; Bar", "x"}, p.ParseLine(`1,50;"Café; Bar";x`))
	})

	t.Run("tab delimiter", func(t *testing.T) {
		p := newParser(t, Config{Delimiter: '\t', HasHeader: true})
		assert.Equal(t, []string{"a b", "c"}, p.ParseLine("a b\tc"))
	})
}

func TestParser_ParseHeaders(t *testing.T) {
	p := newParser(t, DefaultConfig())

	t.Run("first line only", func(t *testing.T) {
		headers := p.ParseHeaders("Date,Description,Amount\n2024-01-01,x,1\n")
		assert.Equal(t, []string{"Date", "Description", "Amount"}, headers)
	})

	t.Run("quoted header containing delimiter", func(t *testing.T) {
		headers := p.ParseHeaders(`Date,"Description, Details",Amount`)
		assert.Equal(t, []string{"Date", "Description, Details", "Amount"}, headers)
	})

	t.Run("CRLF and BOM", func(t *testing.T) {
		headers := p.ParseHeaders("\uFEFFDate,Amount\r\n1,2\r\n")
		assert.Equal(t, []string{"Date", "Amount"}, headers)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, p.ParseHeaders(""))
		assert.Empty(t, p.ParseHeaders("  \n "))
	})
}

func TestParser_ParseTransactions(t *testing.T) {
	t.Run("invalid date on the second row", func(t *testing.T) {
		content := "2024-01-15,Coffee Shop,-4.50\n" +
			"2024-13-45,Bad Date,-10.00\n" +
			"2024-01-17,Groceries,-125.30\n"

		p := newParser(t, Config{Delimiter: ',', HasHeader: false})
		result, err := p.ParseTransactions(content, singleAmountMapping(), 1)

		require.NoError(t, err)
		assert.Len(t, result.Transactions, 2)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "Line 2")
		assert.Contains(t, result.Errors[0], "Invalid date")
		assert.Equal(t, "Line 2: Invalid date: 2024-13-45", result.Errors[0])
		assert.Equal(t, 3, result.TotalRows)
	})

	t.Run("standard file with header", func(t *testing.T) {
		content := `Date,Description,Amount,Category,Notes
2024-01-15,Coffee Shop,-4.50,Food,
2024-01-16,Salary,"5,000.00",Income,January
`
		p := newParser(t, DefaultConfig())
		mapping := sniffer.AutoDetectMapping(p.ParseHeaders(content))
		result, err := p.ParseTransactions(content, mapping, 42)

		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)
		assert.Empty(t, result.Errors)

		tx := result.Transactions[0]
		assert.Equal(t, "2024-01-15", tx.Date)
		assert.Equal(t, "Coffee Shop", tx.Description)
		assert.Equal(t, "-4.50", tx.Amount.StringFixed(2))
		assert.Equal(t, "Food", tx.SourceCategory)
		assert.Empty(t, tx.Notes)
		assert.Equal(t, 2, tx.Line)
		assert.Equal(t, dedup.Hash(42, "2024-01-15", "Coffee Shop", tx.Amount), tx.Hash)

		salary := result.Transactions[1]
		assert.Equal(t, "5000.00", salary.Amount.StringFixed(2))
		assert.Equal(t, "January", salary.Notes)
		assert.Equal(t, 3, salary.Line)
	})

	t.Run("European semicolon file", func(t *testing.T) {
		content := "Datum;Verwendungszweck;Betrag\r\n" +
			"15.01.2024;Bäckerei;-4,50\r\n" +
			"16.01.2024;Gehalt;1.234,56\r\n"

		p := newParser(t, Config{Delimiter: ';', HasHeader: true})
		mapping := sniffer.AutoDetectMapping(p.ParseHeaders(content))
		result, err := p.ParseTransactions(content, mapping, 1)

		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)
		assert.Equal(t, "2024-01-15", result.Transactions[0].Date)
		assert.Equal(t, "-4.50", result.Transactions[0].Amount.StringFixed(2))
		assert.Equal(t, "1234.56", result.Transactions[1].Amount.StringFixed(2))
	})

	t.Run("debit and credit columns", func(t *testing.T) {
		content := `Date,Description,Debit,Credit
2024-01-15,Utility Bill,65.32,
2024-01-16,Payroll,,1427.36
2024-01-17,Nothing,,
2024-01-18,Both,10.00,5.00
2024-01-19,Free Sample,0.00,
`
		p := newParser(t, DefaultConfig())
		mapping := sniffer.AutoDetectMapping(p.ParseHeaders(content))
		require.True(t, mapping.IsDoubleEntry())

		result, err := p.ParseTransactions(content, mapping, 1)
		require.NoError(t, err)

		require.Len(t, result.Transactions, 3)
		assert.Equal(t, "-65.32", result.Transactions[0].Amount.StringFixed(2))
		assert.Equal(t, "1427.36", result.Transactions[1].Amount.StringFixed(2))
		assert.True(t, result.Transactions[2].Amount.IsZero())

		assert.Equal(t, []string{
			"Line 4: Missing required fields (date, description, amount)",
			"Line 5: Both debit and credit populated: 10.00 / 5.00",
		}, result.Errors)
	})

	t.Run("one error per failed row and processing continues", func(t *testing.T) {
		content := `Date,Description,Amount
2024-01-15,,-4.50
2024-01-16,Lunch,abc
,Dinner,-20.00
12/20/24,Parking,-3.00

2024-01-20,Short
2024-01-21,Books,(19.99)
`
		p := newParser(t, DefaultConfig())
		result, err := p.ParseTransactions(content, singleAmountMapping(), 1)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"Line 2: Missing required fields (date, description, amount)",
			"Line 3: Invalid amount: abc",
			"Line 4: Missing required fields (date, description, amount)",
			"Line 7: Missing required fields (date, description, amount)",
		}, result.Errors)

		require.Len(t, result.Transactions, 2)
		assert.Equal(t, "2024-12-20", result.Transactions[0].Date)
		assert.Equal(t, 5, result.Transactions[0].Line)
		assert.Equal(t, "-19.99", result.Transactions[1].Amount.StringFixed(2))
		assert.Equal(t, 8, result.Transactions[1].Line)
		assert.Equal(t, 6, result.TotalRows)
	})

	t.Run("same date in three formats hashes identically", func(t *testing.T) {
		content := "2024-12-20,Grocery Store,-45.99\n" +
			"12/20/2024,Grocery Store,-45.99\n" +
			"12/20/24,Grocery Store,-45.99\n"

		p := newParser(t, Config{Delimiter: ',', HasHeader: false})
		result, err := p.ParseTransactions(content, singleAmountMapping(), 9)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 3)

		assert.Equal(t, result.Transactions[0].Hash, result.Transactions[1].Hash)
		assert.Equal(t, result.Transactions[0].Hash, result.Transactions[2].Hash)
	})

	t.Run("charge and refund do not collide", func(t *testing.T) {
		content := "2024-12-20,Store,-100.00\n2024-12-20,Store,100.00\n"

		p := newParser(t, Config{Delimiter: ',', HasHeader: false})
		result, err := p.ParseTransactions(content, singleAmountMapping(), 1)
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)
		assert.NotEqual(t, result.Transactions[0].Hash, result.Transactions[1].Hash)
	})

	t.Run("empty content", func(t *testing.T) {
		p := newParser(t, DefaultConfig())
		_, err := p.ParseTransactions(" \n\n", singleAmountMapping(), 1)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("incomplete mapping", func(t *testing.T) {
		p := newParser(t, DefaultConfig())
		mapping := sniffer.EmptyMapping()
		mapping.Date = 0

		_, err := p.ParseTransactions("Date,Foo\n2024-01-01,x\n", mapping, 1)

		var mappingErr *sniffer.MappingError
		require.True(t, errors.As(err, &mappingErr))
		assert.Equal(t, []string{"description", "amount"}, mappingErr.Missing)
	})

	t.Run("header only", func(t *testing.T) {
		p := newParser(t, DefaultConfig())
		result, err := p.ParseTransactions("Date,Description,Amount\n", singleAmountMapping(), 1)
		require.NoError(t, err)
		assert.Empty(t, result.Transactions)
		assert.Empty(t, result.Errors)
		assert.Zero(t, result.TotalRows)
	})
}

func TestParser_ParseTransactions_GeneratedStatements(t *testing.T) {
	layouts := map[string]importtest.Layout{
		"english":    importtest.LayoutEN,
		"portuguese": importtest.LayoutPT,
		"german":     importtest.LayoutDE,
	}

	for name, layout := range layouts {
		t.Run(name, func(t *testing.T) {
			rows := importtest.NewGenerator(7).Rows(50)
			content := importtest.Statement(layout, rows)

			p := newParser(t, Config{Delimiter: layout.Delimiter, HasHeader: true})
			mapping := sniffer.AutoDetectMapping(p.ParseHeaders(content))
			require.NoError(t, mapping.Validate())
			assert.Equal(t, layout.DoubleEntry, mapping.IsDoubleEntry())

			result, err := p.ParseTransactions(content, mapping, 3)
			require.NoError(t, err)
			require.Empty(t, result.Errors)
			require.Len(t, result.Transactions, len(rows))

			for i, tx := range result.Transactions {
				assert.Equal(t, rows[i].ISODate(), tx.Date, "row %d", i)
				assert.Equal(t, rows[i].Description, tx.Description, "row %d", i)
				assert.True(t, rows[i].Amount.Equal(tx.Amount), "row %d: want %s got %s", i, rows[i].Amount, tx.Amount)
				assert.Equal(t, rows[i].Category, tx.SourceCategory, "row %d", i)
				assert.Equal(t, i+2, tx.Line)
			}
		})
	}
}

func TestJoinLine(t *testing.T) {
	p := newParser(t, Config{Delimiter: ';', HasHeader: true})
	fields := []string{"2024-01-15", `Shop "A"; Branch`, "multi\nline", "-4,50"}

	line := JoinLine(fields, ';')
	assert.NotContains(t, line, "\n")
	assert.Equal(t, []string{"2024-01-15", `Shop "A"; Branch`, "multi line", "-4,50"}, p.ParseLine(line))
}

func TestWorkbookToText(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet("Transactions")
	require.NoError(t, err)

	rows := [][]any{
		{"Date", "Description", "Amount"},
		{"2024-01-15", "Coffee, large", "-4.50"},
		{"2024-01-16", "Salary", "5000"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Transactions", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	content, err := WorkbookToText(buf, ',')
	require.NoError(t, err)

	p := newParser(t, DefaultConfig())
	headers := p.ParseHeaders(content)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, headers)

	result, err := p.ParseTransactions(content, sniffer.AutoDetectMapping(headers), 1)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "Coffee, large", result.Transactions[0].Description)
	assert.Equal(t, "5000.00", result.Transactions[1].Amount.StringFixed(2))
}

func TestWorkbookToText_NotAWorkbook(t *testing.T) {
	_, err := WorkbookToText(strings.NewReader("Date,Amount\n"), ',')
	assert.Error(t, err)
}

func TestFindTransactionSheet(t *testing.T) {
	assert.Equal(t, "Extrato", findTransactionSheet([]string{"Resumo", "Extrato"}))
	assert.Equal(t, "Summary", findTransactionSheet([]string{"Summary", "Other"}))
	assert.Empty(t, findTransactionSheet(nil))
}

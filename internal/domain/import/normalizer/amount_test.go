package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain decimal", "42.10", "42.10"},
		{"negative", "-4.50", "-4.50"},
		{"explicit plus", "+12.00", "12.00"},
		{"integer", "100", "100"},
		{"zero", "0", "0"},
		{"zero with decimals", "0.00", "0"},
		{"euro symbol with US grouping", "€1,234.56", "1234.56"},
		{"dollar symbol", "$99.99", "99.99"},
		{"pound symbol", "£12.34", "12.34"},
		{"yen symbol", "¥5000", "5000"},
		{"negative before symbol", "-$4.50", "-4.50"},
		{"parentheses negative", "(100.00)", "-100.00"},
		{"parentheses with symbol", "($1,250.00)", "-1250.00"},
		{"European grouping", "1.234,56", "1234.56"},
		{"European negative", "-1.234,56", "-1234.56"},
		{"single comma is decimal", "4,50", "4.50"},
		{"single comma three digits is still decimal", "1,234", "1.234"},
		{"many commas are thousands", "1,234,567", "1234567"},
		{"many dots are thousands", "1.234.567", "1234567"},
		{"European millions", "1.234.567,89", "1234567.89"},
		{"US millions", "1,234,567.89", "1234567.89"},
		{"inner whitespace", "1 234,56", "1234.56"},
		{"non-breaking space", "1 234,56 €", "1234.56"},
		{"surrounding whitespace", "  -65.32  ", "-65.32"},
		{"leading dot", ".5", "0.5"},
		{"trailing dot", "5.", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(result),
				"ParseAmount(%q) = %s, want %s", tt.input, result, tt.expected)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"$",
		"-",
		"()",
		"abc",
		"12abc",
		"1.234,56,78",
		"1e5",
		"--5",
		"N/A",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAmount(input)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestParseAmount_RoundTrip(t *testing.T) {
	inputs := []string{"0.01", "-65.32", "1427.36", "(100.00)", "1.234,56", "€1,234.56", "100", "-0.50"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := ParseAmount(input)
			require.NoError(t, err)

			second, err := ParseAmount(first.StringFixed(2))
			require.NoError(t, err)
			assert.True(t, first.Equal(second), "%s != %s", first, second)
		})
	}
}

func TestConsolidateDebitCredit(t *testing.T) {
	t.Run("debit becomes negative", func(t *testing.T) {
		amount, raw, err := ConsolidateDebitCredit("65.32", "")
		require.NoError(t, err)
		assert.Equal(t, "-65.32", amount.StringFixed(2))
		assert.Equal(t, "65.32", raw)
	})

	t.Run("already negative debit stays negative", func(t *testing.T) {
		amount, _, err := ConsolidateDebitCredit("-65.32", "")
		require.NoError(t, err)
		assert.Equal(t, "-65.32", amount.StringFixed(2))
	})

	t.Run("credit is kept as is", func(t *testing.T) {
		amount, raw, err := ConsolidateDebitCredit("", "1427.36")
		require.NoError(t, err)
		assert.Equal(t, "1427.36", amount.StringFixed(2))
		assert.Equal(t, "1427.36", raw)
	})

	t.Run("European debit", func(t *testing.T) {
		amount, _, err := ConsolidateDebitCredit("1.250,00", " ")
		require.NoError(t, err)
		assert.Equal(t, "-1250.00", amount.StringFixed(2))
	})

	t.Run("zero is a valid amount", func(t *testing.T) {
		amount, _, err := ConsolidateDebitCredit("", "0.00")
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})

	t.Run("both blank", func(t *testing.T) {
		_, _, err := ConsolidateDebitCredit("", "  ")
		assert.ErrorIs(t, err, ErrNoAmount)
	})

	t.Run("both populated", func(t *testing.T) {
		_, raw, err := ConsolidateDebitCredit("10.00", "5.00")
		assert.ErrorIs(t, err, ErrAmbiguousDebitCredit)
		assert.Equal(t, "10.00 / 5.00", raw)
	})

	t.Run("invalid debit reports raw cell", func(t *testing.T) {
		_, raw, err := ConsolidateDebitCredit("ten", "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, "ten", raw)
	})
}

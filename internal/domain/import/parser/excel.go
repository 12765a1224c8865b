package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// preferredSheets are matched case-insensitively before falling back to the first sheet.
var preferredSheets = []string{
	"transactions", "movimentos", "extrato", "umsätze", "movimientos",
	"statement", "data", "sheet1",
}

// WorkbookToText converts the transaction sheet of an XLSX workbook into delimited
// text that ParseHeaders and ParseTransactions accept. Built-in short dates are
// rendered as YYYY-MM-DD.
func WorkbookToText(reader io.Reader, delimiter rune) (string, error) {
	f, err := excelize.OpenReader(reader, excelize.Options{
		ShortDatePattern: "yyyy-mm-dd",
	})
	if err != nil {
		return "", fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f.GetSheetList())
	if sheet == "" {
		return "", fmt.Errorf("no suitable sheet found")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(JoinLine(row, delimiter))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func findTransactionSheet(sheets []string) string {
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}

// JoinLine is the inverse of ParseLine: fields containing the delimiter or a quote
// are wrapped in quotes with inner quotes doubled. Line breaks inside a field
// become spaces since rows are line-delimited.
func JoinLine(fields []string, delimiter rune) string {
	var sb strings.Builder
	for i, field := range fields {
		if i > 0 {
			sb.WriteRune(delimiter)
		}
		field = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(field)
		if strings.ContainsRune(field, delimiter) || strings.ContainsRune(field, '"') {
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(field, `"`, `""`))
			sb.WriteByte('"')
			continue
		}
		sb.WriteString(field)
	}
	return sb.String()
}

package sniffer

import (
	"fmt"
	"strings"
)

// Field is a logical transaction field a CSV column can be mapped to.
type Field string

const (
	FieldDate           Field = "date"
	FieldDescription    Field = "description"
	FieldDebit          Field = "debit"
	FieldCredit         Field = "credit"
	FieldAmount         Field = "amount"
	FieldSourceCategory Field = "source_category"
	FieldNotes          Field = "notes"
)

// fieldOrder is the order in which fields claim header columns.
// Debit and credit come before amount so "Debit Amount" is not taken as the amount column.
var fieldOrder = []Field{
	FieldDate,
	FieldDescription,
	FieldDebit,
	FieldCredit,
	FieldAmount,
	FieldSourceCategory,
	FieldNotes,
}

// PatternTable maps each field to its ordered, lowercase header substrings.
// Earlier patterns win over later ones regardless of header position.
type PatternTable map[Field][]string

var defaultPatterns = PatternTable{
	FieldDate: {
		// English
		"transaction date", "posting date", "booking date", "trans. date",
		// German
		"buchungsdatum", "buchungstag", "datum",
		// Spanish
		"fecha",
		// Portuguese
		"data mov", "data",
		// French
		"date d'opération", "date operation",
		"date",
	},
	FieldDescription: {
		"description", "merchant", "payee", "details", "narrative",
		"verwendungszweck", "beschreibung", "buchungstext", "empfänger",
		"descripción", "descripcion", "concepto",
		"descrição", "descricao",
		"libellé", "libelle",
		"nome", "name",
	},
	FieldDebit: {
		"debit", "withdrawal", "money out", "paid out",
		"soll", "belastung",
		"cargo", "débito", "debito",
		"débit",
	},
	FieldCredit: {
		"credit", "deposit", "money in", "paid in",
		"haben", "gutschrift",
		"abono", "crédito", "credito",
		"crédit",
	},
	FieldAmount: {
		"amount",
		"betrag", "umsatz",
		"importe", "cantidad",
		"montante", "valor",
		"montant",
	},
	FieldSourceCategory: {
		"category", "kategorie", "categoría", "categoria", "catégorie",
		"tipo", "type",
	},
	FieldNotes: {
		"notes", "note", "memo", "reference", "comment",
		"notiz", "referenz",
		"notas", "nota", "observaciones",
		"référence", "remarque",
	},
}

// DefaultPatterns returns a copy of the built-in pattern table.
// Callers may append patterns for additional locales before passing it to AutoDetectMappingWith.
func DefaultPatterns() PatternTable {
	table := make(PatternTable, len(defaultPatterns))
	for field, patterns := range defaultPatterns {
		table[field] = append([]string(nil), patterns...)
	}
	return table
}

// ColumnMapping holds the 0-based column index of each field, -1 when undetected.
type ColumnMapping struct {
	Date           int `json:"date"`
	Description    int `json:"description"`
	Amount         int `json:"amount"`
	Debit          int `json:"debit"`
	Credit         int `json:"credit"`
	SourceCategory int `json:"source_category"`
	Notes          int `json:"notes"`
}

// EmptyMapping returns a mapping with every field undetected.
func EmptyMapping() ColumnMapping {
	return ColumnMapping{
		Date:           -1,
		Description:    -1,
		Amount:         -1,
		Debit:          -1,
		Credit:         -1,
		SourceCategory: -1,
		Notes:          -1,
	}
}

// Index returns the column mapped to f.
func (m ColumnMapping) Index(f Field) int {
	switch f {
	case FieldDate:
		return m.Date
	case FieldDescription:
		return m.Description
	case FieldAmount:
		return m.Amount
	case FieldDebit:
		return m.Debit
	case FieldCredit:
		return m.Credit
	case FieldSourceCategory:
		return m.SourceCategory
	case FieldNotes:
		return m.Notes
	}
	return -1
}

func (m *ColumnMapping) set(f Field, idx int) {
	switch f {
	case FieldDate:
		m.Date = idx
	case FieldDescription:
		m.Description = idx
	case FieldAmount:
		m.Amount = idx
	case FieldDebit:
		m.Debit = idx
	case FieldCredit:
		m.Credit = idx
	case FieldSourceCategory:
		m.SourceCategory = idx
	case FieldNotes:
		m.Notes = idx
	}
}

// HasAmount reports whether a single signed amount column is mapped.
func (m ColumnMapping) HasAmount() bool {
	return m.Amount >= 0
}

// IsDoubleEntry reports whether money in and out are read from separate columns.
// A mapped amount column takes precedence.
func (m ColumnMapping) IsDoubleEntry() bool {
	return m.Amount < 0 && (m.Debit >= 0 || m.Credit >= 0)
}

// Missing lists the required fields that are not mapped.
func (m ColumnMapping) Missing() []string {
	var missing []string
	if m.Date < 0 {
		missing = append(missing, string(FieldDate))
	}
	if m.Description < 0 {
		missing = append(missing, string(FieldDescription))
	}
	if m.Amount < 0 && m.Debit < 0 && m.Credit < 0 {
		missing = append(missing, string(FieldAmount))
	}
	return missing
}

// Validate returns a *MappingError when required fields are missing.
func (m ColumnMapping) Validate() error {
	if missing := m.Missing(); len(missing) > 0 {
		return &MappingError{Missing: missing}
	}
	return nil
}

// MappingError is returned when a file cannot be imported without a manual mapping.
type MappingError struct {
	Missing []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("could not map required columns: %s", strings.Join(e.Missing, ", "))
}

// AutoDetectMapping guesses the column mapping from header names using the default patterns.
func AutoDetectMapping(headers []string) ColumnMapping {
	return AutoDetectMappingWith(headers, defaultPatterns)
}

// AutoDetectMappingWith guesses the column mapping using the given pattern table.
//
// For each field the patterns are tried in order and the first unclaimed header
// containing the pattern wins. A header is claimed by at most one field. When both
// debit and credit columns are found the file is treated as double entry and no
// amount column is reported.
func AutoDetectMappingWith(headers []string, table PatternTable) ColumnMapping {
	mapping := EmptyMapping()

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	claimed := make([]bool, len(headers))

	for _, field := range fieldOrder {
	patterns:
		for _, pattern := range table[field] {
			for i, h := range normalized {
				if claimed[i] || h == "" {
					continue
				}
				if strings.Contains(h, pattern) {
					mapping.set(field, i)
					claimed[i] = true
					break patterns
				}
			}
		}
	}

	if mapping.Debit >= 0 && mapping.Credit >= 0 {
		mapping.Amount = -1
	}

	return mapping
}

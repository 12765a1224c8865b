// Package repository provides data access for import-related entities.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
)

// BankMapping is a confirmed column mapping for one header layout.
type BankMapping struct {
	ID          int64                 `db:"id"`
	Fingerprint string                `db:"fingerprint"`
	BankName    *string               `db:"bank_name"`
	Delimiter   string                `db:"delimiter"`
	HasHeader   bool                  `db:"has_header"`
	Mapping     sniffer.ColumnMapping `db:"columns"`
	CreatedAt   time.Time             `db:"created_at"`
	UpdatedAt   time.Time             `db:"updated_at"`
}

// Transaction is a normalized row ready to be stored.
type Transaction struct {
	SourceID       int64
	Hash           string
	Date           time.Time
	Description    string
	Amount         decimal.Decimal
	CurrencyCode   string
	SourceCategory *string
	Notes          *string
	UnitID         *int64
	CategoryID     *int64
}

// ImportRepository defines data access operations for imports
type ImportRepository interface {
	// Duplicate detection
	ExistsByHash(ctx context.Context, sourceID int64, hash string) (bool, error)

	// InsertTransactions stores txs and returns how many rows were written.
	// Rows whose (source, hash) already exist are skipped, not failed.
	InsertTransactions(ctx context.Context, txs []Transaction) (int, error)

	// Bank Mappings
	GetMappingByFingerprint(ctx context.Context, fingerprint string) (*BankMapping, error)
	SaveMapping(ctx context.Context, mapping *BankMapping) error
}

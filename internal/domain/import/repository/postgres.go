package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/budget-tracker/pkg/money"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	db DB
}

// NewPostgresImportRepository creates a new PostgreSQL import repository
func NewPostgresImportRepository(db DB) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

// ExistsByHash reports whether a transaction with hash was already imported for the source
func (r *PostgresImportRepository) ExistsByHash(ctx context.Context, sourceID int64, hash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE source_id = $1 AND hash = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, sourceID, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return exists, nil
}

// InsertTransactions writes txs in a single database transaction
func (r *PostgresImportRepository) InsertTransactions(ctx context.Context, txs []Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO transactions (
			source_id, hash, date, description, amount_minor, currency_code,
			source_category, notes, unit_id, category_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_id, hash) DO NOTHING`

	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	inserted := 0
	for _, tx := range txs {
		amount, err := money.NewFromDecimal(tx.Amount, tx.CurrencyCode)
		if err != nil {
			return 0, fmt.Errorf("transaction %s: %w", tx.Hash, err)
		}

		tag, err := dbTx.Exec(ctx, query,
			tx.SourceID,
			tx.Hash,
			tx.Date,
			tx.Description,
			amount.Amount(),
			amount.Currency(),
			tx.SourceCategory,
			tx.Notes,
			tx.UnitID,
			tx.CategoryID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", tx.Hash, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// GetMappingByFingerprint returns the saved mapping for a header layout, or nil when none exists
func (r *PostgresImportRepository) GetMappingByFingerprint(ctx context.Context, fingerprint string) (*BankMapping, error) {
	query := `
		SELECT id, fingerprint, bank_name, delimiter, has_header, columns, created_at, updated_at
		FROM bank_mappings
		WHERE fingerprint = $1`

	var (
		m       BankMapping
		columns []byte
	)
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(
		&m.ID,
		&m.Fingerprint,
		&m.BankName,
		&m.Delimiter,
		&m.HasHeader,
		&columns,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank mapping: %w", err)
	}

	m.Mapping = sniffer.EmptyMapping()
	if err := json.Unmarshal(columns, &m.Mapping); err != nil {
		return nil, fmt.Errorf("failed to decode bank mapping columns: %w", err)
	}
	return &m, nil
}

// SaveMapping creates or replaces the mapping stored for the fingerprint
func (r *PostgresImportRepository) SaveMapping(ctx context.Context, m *BankMapping) error {
	columns, err := json.Marshal(m.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode bank mapping columns: %w", err)
	}

	query := `
		INSERT INTO bank_mappings (fingerprint, bank_name, delimiter, has_header, columns)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE
		SET bank_name = EXCLUDED.bank_name,
			delimiter = EXCLUDED.delimiter,
			has_header = EXCLUDED.has_header,
			columns = EXCLUDED.columns,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		m.Fingerprint,
		m.BankName,
		m.Delimiter,
		m.HasHeader,
		columns,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save bank mapping: %w", err)
	}
	return nil
}

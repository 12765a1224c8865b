package categorization

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RuleStore provides the active rules in evaluation order.
type RuleStore interface {
	ListActiveUnitRules(ctx context.Context) ([]Rule, error)
	ListActiveCategoryRules(ctx context.Context) ([]Rule, error)
}

// Repository handles database operations for categorization rules
type Repository struct {
	db DBTX
}

// NewRepository creates a new categorization repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// ruleTable returns the table and target column for a rule kind.
func ruleTable(kind Kind) (table, target string, err error) {
	switch kind {
	case KindUnit:
		return "unit_rules", "unit_id", nil
	case KindCategory:
		return "category_rules", "category_id", nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// ListActiveUnitRules fetches active unit rules ordered by priority
func (r *Repository) ListActiveUnitRules(ctx context.Context) ([]Rule, error) {
	return r.listActive(ctx, KindUnit)
}

// ListActiveCategoryRules fetches active category rules ordered by priority
func (r *Repository) ListActiveCategoryRules(ctx context.Context) ([]Rule, error) {
	return r.listActive(ctx, KindCategory)
}

func (r *Repository) listActive(ctx context.Context, kind Kind) ([]Rule, error) {
	table, target, err := ruleTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, rule_type, pattern, match_type, %s, priority, active
		FROM %s
		WHERE active = true
		ORDER BY priority ASC, id ASC
	`, target, table)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rules: %w", kind, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID,
			&rule.RuleType,
			&rule.Pattern,
			&rule.MatchType,
			&rule.TargetID,
			&rule.Priority,
			&rule.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s rule: %w", kind, err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// CreateRule inserts a rule and sets its ID
func (r *Repository) CreateRule(ctx context.Context, kind Kind, rule *Rule) error {
	table, target, err := ruleTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (rule_type, pattern, match_type, %s, priority, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, table, target)

	if err := r.db.QueryRow(ctx, query,
		rule.RuleType,
		rule.Pattern,
		rule.MatchType,
		rule.TargetID,
		rule.Priority,
		rule.Active,
	).Scan(&rule.ID); err != nil {
		return fmt.Errorf("failed to create %s rule: %w", kind, err)
	}
	return nil
}

// DeleteRule removes a rule, returning ErrRuleNotFound when it does not exist
func (r *Repository) DeleteRule(ctx context.Context, kind Kind, id int64) error {
	table, _, err := ruleTable(kind)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s rule: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

package categorization

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Suggestion is the unit and category a transaction would be assigned.
// A nil id means no rule matched and the transaction stays unassigned.
type Suggestion struct {
	UnitID     *int64 `json:"suggested_unit_id,omitempty"`
	CategoryID *int64 `json:"suggested_category_id,omitempty"`
}

// RuleWriter persists rule changes.
type RuleWriter interface {
	CreateRule(ctx context.Context, kind Kind, rule *Rule) error
	DeleteRule(ctx context.Context, kind Kind, id int64) error
}

// Store is the full rule persistence contract.
type Store interface {
	RuleStore
	RuleWriter
}

// Service suggests classifications from the stored rules.
// Rules are read on every call so edits apply to the next import immediately.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new categorization service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Engines loads the active unit and category rules and compiles them.
func (s *Service) Engines(ctx context.Context) (units, categories *Engine, err error) {
	var unitRules, categoryRules []Rule

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		unitRules, err = s.store.ListActiveUnitRules(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categoryRules, err = s.store.ListActiveCategoryRules(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}

	units = NewEngine(unitRules)
	categories = NewEngine(categoryRules)
	s.reportInvalid(ctx, KindUnit, units)
	s.reportInvalid(ctx, KindCategory, categories)

	return units, categories, nil
}

// Suggest returns one suggestion per entry of fields, in the same order.
func (s *Service) Suggest(ctx context.Context, fields []Fields) ([]Suggestion, error) {
	units, categories, err := s.Engines(ctx)
	if err != nil {
		return nil, err
	}
	return SuggestWith(units, categories, fields), nil
}

// SuggestWith applies already built engines to fields.
func SuggestWith(units, categories *Engine, fields []Fields) []Suggestion {
	suggestions := make([]Suggestion, len(fields))
	for i, f := range fields {
		if id, ok := units.Apply(f); ok {
			suggestions[i].UnitID = &id
		}
		if id, ok := categories.Apply(f); ok {
			suggestions[i].CategoryID = &id
		}
	}
	return suggestions
}

func (s *Service) reportInvalid(ctx context.Context, kind Kind, e *Engine) {
	for _, r := range e.Invalid() {
		s.logger.WarnContext(ctx, "skipping invalid rule",
			slog.String("kind", string(kind)),
			slog.Int64("rule_id", r.ID),
			slog.String("pattern", r.Pattern),
			slog.String("match_type", string(r.MatchType)),
		)
	}
}

// CreateRule validates and stores a new rule.
func (s *Service) CreateRule(ctx context.Context, kind Kind, rule *Rule) error {
	if _, _, err := ruleTable(kind); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateRule(ctx, kind, rule); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "rule created",
		slog.String("kind", string(kind)),
		slog.Int64("rule_id", rule.ID),
		slog.Int("priority", rule.Priority),
	)
	return nil
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, kind Kind, id int64) error {
	if _, _, err := ruleTable(kind); err != nil {
		return err
	}
	return s.store.DeleteRule(ctx, kind, id)
}

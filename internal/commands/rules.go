package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/budget-tracker/internal/domain/categorization"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
)

// ruleRow is one line of a rules file:
//
//	kind,rule_type,pattern,match_type,target_id,priority,active
//	unit,description,NETFLIX,contains,2,10,true
type ruleRow struct {
	Kind      string `csv:"kind"`
	RuleType  string `csv:"rule_type"`
	Pattern   string `csv:"pattern"`
	MatchType string `csv:"match_type"`
	TargetID  int64  `csv:"target_id"`
	Priority  int    `csv:"priority"`
	Active    string `csv:"active"` // empty means active
}

// fileSuggester applies rules loaded once from a file.
type fileSuggester struct {
	units      *categorization.Engine
	categories *categorization.Engine
}

func (s *fileSuggester) Suggest(_ context.Context, rows []importservice.RuleInput) ([]importservice.Suggestion, error) {
	fields := make([]categorization.Fields, len(rows))
	for i, row := range rows {
		fields[i] = categorization.Fields{Description: row.Description, SourceCategory: row.SourceCategory}
	}

	results := categorization.SuggestWith(s.units, s.categories, fields)
	out := make([]importservice.Suggestion, len(results))
	for i, r := range results {
		out[i] = importservice.Suggestion{UnitID: r.UnitID, CategoryID: r.CategoryID}
	}
	return out, nil
}

func loadRules(ctx context.Context, path string, logger *slog.Logger) (*fileSuggester, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rules: %w", err)
	}
	defer f.Close()

	var rows []ruleRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("reading rules %s: %w", path, err)
	}

	var units, categories []categorization.Rule
	for i, row := range rows {
		rule := categorization.Rule{
			ID:        int64(i + 1),
			RuleType:  categorization.RuleType(strings.TrimSpace(row.RuleType)),
			Pattern:   row.Pattern,
			MatchType: categorization.MatchType(strings.TrimSpace(row.MatchType)),
			TargetID:  row.TargetID,
			Priority:  row.Priority,
			Active:    !strings.EqualFold(strings.TrimSpace(row.Active), "false"),
		}
		if rule.RuleType == "" {
			rule.RuleType = categorization.RuleTypeDescription
		}
		if rule.MatchType == "" {
			rule.MatchType = categorization.MatchContains
		}

		switch categorization.Kind(strings.ToLower(strings.TrimSpace(row.Kind))) {
		case categorization.KindUnit:
			units = append(units, rule)
		case categorization.KindCategory:
			categories = append(categories, rule)
		default:
			return nil, fmt.Errorf("rules line %d: %w %q", i+2, categorization.ErrUnknownKind, row.Kind)
		}
	}

	s := &fileSuggester{
		units:      categorization.NewEngine(units),
		categories: categorization.NewEngine(categories),
	}
	for kind, e := range map[categorization.Kind]*categorization.Engine{
		categorization.KindUnit:     s.units,
		categorization.KindCategory: s.categories,
	} {
		for _, r := range e.Invalid() {
			logger.WarnContext(ctx, "skipping invalid rule",
				slog.String("kind", string(kind)),
				slog.Int64("rule_id", r.ID),
				slog.String("pattern", r.Pattern),
			)
		}
	}

	logger.InfoContext(ctx, "rules loaded",
		slog.Int("unit_rules", s.units.Len()),
		slog.Int("category_rules", s.categories.Len()),
	)
	return s, nil
}

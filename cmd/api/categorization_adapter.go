package main

import (
	"context"

	"github.com/FACorreiaa/budget-tracker/internal/domain/categorization"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
)

// categorizationAdapter adapts categorization.Service to import's Suggester interface
type categorizationAdapter struct {
	svc *categorization.Service
}

// newCategorizationAdapter creates a new adapter
func newCategorizationAdapter(svc *categorization.Service) importservice.Suggester {
	return &categorizationAdapter{svc: svc}
}

// Suggest implements importservice.Suggester
func (a *categorizationAdapter) Suggest(ctx context.Context, rows []importservice.RuleInput) ([]importservice.Suggestion, error) {
	fields := make([]categorization.Fields, len(rows))
	for i, row := range rows {
		fields[i] = categorization.Fields{
			Description:    row.Description,
			SourceCategory: row.SourceCategory,
		}
	}

	results, err := a.svc.Suggest(ctx, fields)
	if err != nil {
		return nil, err
	}

	suggestions := make([]importservice.Suggestion, len(results))
	for i, r := range results {
		suggestions[i] = importservice.Suggestion{
			UnitID:     r.UnitID,
			CategoryID: r.CategoryID,
		}
	}
	return suggestions, nil
}

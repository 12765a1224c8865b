package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/budget-tracker/internal/domain/categorization"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
)

type staticRules struct {
	units, categories []categorization.Rule
}

func (s staticRules) ListActiveUnitRules(context.Context) ([]categorization.Rule, error) {
	return s.units, nil
}

func (s staticRules) ListActiveCategoryRules(context.Context) ([]categorization.Rule, error) {
	return s.categories, nil
}

func (staticRules) CreateRule(context.Context, categorization.Kind, *categorization.Rule) error {
	return nil
}

func (staticRules) DeleteRule(context.Context, categorization.Kind, int64) error {
	return nil
}

func TestCategorizationAdapter_Suggest(t *testing.T) {
	store := staticRules{
		units: []categorization.Rule{
			{ID: 1, RuleType: categorization.RuleTypeDescription, Pattern: "LIDL", MatchType: categorization.MatchContains, TargetID: 3, Priority: 1, Active: true},
		},
		categories: []categorization.Rule{
			{ID: 2, RuleType: categorization.RuleTypeSourceCategory, Pattern: "Supermercado", MatchType: categorization.MatchExact, TargetID: 8, Priority: 1, Active: true},
		},
	}
	svc := categorization.NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := newCategorizationAdapter(svc).Suggest(context.Background(), []importservice.RuleInput{
		{Description: "LIDL LISBOA", SourceCategory: "Supermercado"},
		{Description: "UNKNOWN"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].UnitID)
	require.NotNil(t, got[0].CategoryID)
	assert.Equal(t, int64(3), *got[0].UnitID)
	assert.Equal(t, int64(8), *got[0].CategoryID)
	assert.Nil(t, got[1].UnitID)
	assert.Nil(t, got[1].CategoryID)
}

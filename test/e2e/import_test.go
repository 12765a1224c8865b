// Package e2etest provides end-to-end integration tests for import flows.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/budget-tracker/internal/domain/categorization"
	ruleshandler "github.com/FACorreiaa/budget-tracker/internal/domain/categorization/handler"
	importhandler "github.com/FACorreiaa/budget-tracker/internal/domain/import/handler"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/importtest"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/budget-tracker/pkg/db"
	"github.com/FACorreiaa/budget-tracker/pkg/middleware"
)

// memoryRules is an in-memory categorization.Store.
type memoryRules struct {
	mu     sync.Mutex
	rules  map[categorization.Kind][]categorization.Rule
	nextID int64
}

func newMemoryRules() *memoryRules {
	return &memoryRules{rules: make(map[categorization.Kind][]categorization.Rule)}
}

func (m *memoryRules) list(kind categorization.Kind) []categorization.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]categorization.Rule(nil), m.rules[kind]...)
}

func (m *memoryRules) ListActiveUnitRules(context.Context) ([]categorization.Rule, error) {
	return m.list(categorization.KindUnit), nil
}

func (m *memoryRules) ListActiveCategoryRules(context.Context) ([]categorization.Rule, error) {
	return m.list(categorization.KindCategory), nil
}

func (m *memoryRules) CreateRule(_ context.Context, kind categorization.Kind, rule *categorization.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rule.ID = m.nextID
	m.rules[kind] = append(m.rules[kind], *rule)
	return nil
}

func (m *memoryRules) DeleteRule(_ context.Context, kind categorization.Kind, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules[kind] {
		if r.ID == id {
			m.rules[kind] = append(m.rules[kind][:i], m.rules[kind][i+1:]...)
			return nil
		}
	}
	return categorization.ErrRuleNotFound
}

// suggester adapts the categorization service to the import service.
type suggester struct{ svc *categorization.Service }

func (s suggester) Suggest(ctx context.Context, rows []importservice.RuleInput) ([]importservice.Suggestion, error) {
	fields := make([]categorization.Fields, len(rows))
	for i, r := range rows {
		fields[i] = categorization.Fields{Description: r.Description, SourceCategory: r.SourceCategory}
	}
	got, err := s.svc.Suggest(ctx, fields)
	if err != nil {
		return nil, err
	}
	out := make([]importservice.Suggestion, len(got))
	for i, g := range got {
		out[i] = importservice.Suggestion{UnitID: g.UnitID, CategoryID: g.CategoryID}
	}
	return out, nil
}

func newServer(t *testing.T, repo repository.ImportRepository, rules categorization.Store) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rulesSvc := categorization.NewService(rules, logger)
	importSvc := importservice.NewImportService(repo, logger).
		WithSuggester(suggester{rulesSvc}).
		WithDefaultCurrency("EUR")

	mux := http.NewServeMux()
	importhandler.NewImportHandler(importSvc, logger).Register(mux)
	ruleshandler.NewRulesHandler(rulesSvc, logger).Register(mux)

	srv := httptest.NewServer(middleware.Chain(mux, middleware.RequestID, middleware.Recovery(logger)))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body any, out any) int {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func runImportFlow(t *testing.T, srv *httptest.Server, sourceID int64) {
	gen := importtest.NewGenerator(sourceID)
	rows := gen.Rows(25)
	rows[3].Description = "NETFLIX.COM AMSTERDAM"
	content := importtest.Statement(importtest.LayoutPT, rows)

	// A rule created over HTTP applies to the next preview.
	var created categorization.Rule
	status := post(t, srv.URL+"/api/rules/unit", map[string]any{
		"pattern": "netflix", "target_id": 2, "priority": 1,
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	var preview importservice.PreviewResult
	status = post(t, srv.URL+"/api/imports/preview", map[string]any{
		"content": content, "source_id": sourceID,
	}, &preview)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ";", preview.Delimiter)
	assert.Equal(t, importservice.MappingAutoDetect, preview.MappingSource)
	assert.True(t, preview.Mapping.IsDoubleEntry())
	assert.Equal(t, 25, preview.TotalRows)
	require.Len(t, preview.Rows, importservice.DefaultPreviewLimit)
	require.NotNil(t, preview.Rows[3].SuggestedUnitID)
	assert.Equal(t, int64(2), *preview.Rows[3].SuggestedUnitID)

	// Confirm the mapping; the next preview of the same layout uses it.
	status = post(t, srv.URL+"/api/imports/mappings", map[string]any{
		"headers": preview.Headers, "mapping": preview.Mapping, "delimiter": ";", "bank_name": "CGD",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var first importservice.ImportResult
	status = post(t, srv.URL+"/api/imports", map[string]any{
		"content": content, "source_id": sourceID,
	}, &first)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 25, first.Imported)
	assert.Zero(t, first.Duplicates)
	assert.Empty(t, first.Errors)
	assert.Equal(t, "EUR", first.Currency)

	for i, tx := range first.Transactions {
		assert.Equal(t, rows[i].ISODate(), tx.Date)
		assert.True(t, rows[i].Amount.Equal(tx.Amount), "line %d", tx.Line)
	}

	// Importing the same file again stores nothing new.
	var second importservice.ImportResult
	status = post(t, srv.URL+"/api/imports", map[string]any{
		"content": content, "source_id": sourceID,
	}, &second)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 25, second.Duplicates)

	status = post(t, srv.URL+"/api/imports/preview", map[string]any{
		"content": content, "source_id": sourceID,
	}, &preview)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, importservice.MappingSaved, preview.MappingSource)
	for _, row := range preview.Rows {
		assert.True(t, row.Duplicate)
	}
}

func TestImportFlow_InMemory(t *testing.T) {
	srv := newServer(t, repository.NewMemoryImportRepository(), newMemoryRules())
	runImportFlow(t, srv, 11)
}

func TestImportFlow_UnmappableFile(t *testing.T) {
	srv := newServer(t, repository.NewMemoryImportRepository(), newMemoryRules())

	var body middleware.ErrorResponse
	status := post(t, srv.URL+"/api/imports", map[string]any{
		"content": "Foo;Bar;Baz\n1;2;3\n",
	}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.ElementsMatch(t, []string{"date", "description", "amount"}, body.Missing)
}

// TestImportFlow_Postgres runs the same flow against a real database when
// E2E_DATABASE_URL points at one.
func TestImportFlow_Postgres(t *testing.T) {
	dsn := os.Getenv("E2E_DATABASE_URL")
	if dsn == "" {
		t.Skip("E2E_DATABASE_URL not set")
	}

	database, err := db.New(db.Config{DSN: dsn, MaxConns: 4}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.RunMigrations())

	ctx := context.Background()
	for _, table := range []string{"transactions", "unit_rules", "category_rules", "bank_mappings"} {
		_, err := database.Pool.Exec(ctx, "TRUNCATE "+table)
		require.NoError(t, err)
	}

	srv := newServer(t,
		repository.NewPostgresImportRepository(database.Pool),
		categorization.NewRepository(database.Pool),
	)
	runImportFlow(t, srv, 12)
}

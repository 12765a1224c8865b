// Package service provides the import orchestration logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/parser"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/repository"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/budget-tracker/pkg/money"
)

const (
	DefaultPreviewLimit      = 10
	DefaultLookupConcurrency = 8
)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrInvalidRequest   = errors.New("invalid import request")
	ErrColumnOutOfRange = fmt.Errorf("%w: mapped column is beyond the header row", ErrInvalidRequest)
)

// MappingSource tells where the column mapping of a request came from.
type MappingSource string

const (
	MappingFromRequest MappingSource = "request"
	MappingSaved       MappingSource = "saved"
	MappingAutoDetect  MappingSource = "auto"
)

// RuleInput is what the rule engine sees of a row.
type RuleInput struct {
	Description    string
	SourceCategory string
}

// Suggestion is the unit and category assigned to a row, nil when no rule matched.
type Suggestion struct {
	UnitID     *int64
	CategoryID *int64
}

// Suggester assigns units and categories from the current rule set.
type Suggester interface {
	Suggest(ctx context.Context, rows []RuleInput) ([]Suggestion, error)
}

// Options control how a file is read. The zero Delimiter means detect it.
type Options struct {
	Delimiter rune
	HasHeader bool
	Mapping   *sniffer.ColumnMapping
}

// PreviewRequest asks for a dry run over a file.
type PreviewRequest struct {
	Content  []byte
	SourceID int64
	Options
}

// ImportRequest asks for a file to be stored.
type ImportRequest struct {
	Content         []byte
	SourceID        int64
	Currency        string // ISO-4217; detected from the file when empty
	SkipSuggestions bool
	Options
}

// Row is a parsed transaction with the enrichment applied during preview or import.
type Row struct {
	parser.ParsedTransaction
	SuggestedUnitID     *int64 `json:"suggested_unit_id,omitempty"`
	SuggestedCategoryID *int64 `json:"suggested_category_id,omitempty"`
	Duplicate           bool   `json:"duplicate"`
}

// PreviewResult describes how a file would be imported.
type PreviewResult struct {
	Headers       []string              `json:"headers"`
	Fingerprint   string                `json:"fingerprint,omitempty"`
	Delimiter     string                `json:"delimiter"`
	Mapping       sniffer.ColumnMapping `json:"mapping"`
	MappingSource MappingSource         `json:"mapping_source"`
	Dialect       sniffer.Dialect       `json:"dialect"`
	TotalRows     int                   `json:"total_rows"`
	Rows          []Row                 `json:"preview"`
	Errors        []string              `json:"errors"`
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	Imported     int      `json:"imported"`
	Duplicates   int      `json:"duplicates"`
	TotalRows    int      `json:"total_rows"`
	Errors       []string `json:"errors"`
	Currency     string   `json:"currency"`
	MoneyIn      string   `json:"money_in"`
	MoneyOut     string   `json:"money_out"`
	Transactions []Row    `json:"transactions"`
}

// SaveMappingRequest confirms the mapping for one header layout.
type SaveMappingRequest struct {
	Headers   []string
	Mapping   sniffer.ColumnMapping
	Delimiter rune
	HasHeader bool
	BankName  string
}

// ImportService orchestrates file preview and import operations
type ImportService struct {
	repo      repository.ImportRepository
	suggester Suggester // Optional: nil leaves rows unassigned
	metrics   *Metrics  // Optional
	tracer    trace.Tracer
	logger    *slog.Logger

	previewLimit      int
	lookupConcurrency int
	defaultCurrency   string
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:              repo,
		tracer:            otel.Tracer("github.com/FACorreiaa/budget-tracker/internal/domain/import/service"),
		logger:            logger,
		previewLimit:      DefaultPreviewLimit,
		lookupConcurrency: DefaultLookupConcurrency,
	}
}

// WithSuggester adds rule based unit and category suggestions
func (s *ImportService) WithSuggester(suggester Suggester) *ImportService {
	s.suggester = suggester
	return s
}

// WithMetrics records row and duration metrics
func (s *ImportService) WithMetrics(metrics *Metrics) *ImportService {
	s.metrics = metrics
	return s
}

// WithLimits overrides the preview size and the number of concurrent hash lookups.
// Non-positive values keep the defaults.
func (s *ImportService) WithLimits(previewLimit, lookupConcurrency int) *ImportService {
	if previewLimit > 0 {
		s.previewLimit = previewLimit
	}
	if lookupConcurrency > 0 {
		s.lookupConcurrency = lookupConcurrency
	}
	return s
}

// WithDefaultCurrency sets the currency used when neither the request nor the file names one
func (s *ImportService) WithDefaultCurrency(code string) *ImportService {
	s.defaultCurrency = code
	return s
}

// prepared is a decoded file with its resolved mapping and parse result.
type prepared struct {
	text        string
	parser      *parser.Parser
	headers     []string
	fingerprint string
	mapping     sniffer.ColumnMapping
	source      MappingSource
	result      *parser.Result
}

func (s *ImportService) prepare(ctx context.Context, content []byte, sourceID int64, opts Options) (*prepared, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}

	text := normalizer.DecodeText(content)
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = sniffer.DetectDelimiter(firstLine(text))
	}

	p, err := parser.New(parser.Config{Delimiter: delimiter, HasHeader: opts.HasHeader})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	prep := &prepared{text: text, parser: p, headers: []string{}}
	if opts.HasHeader {
		prep.headers = p.ParseHeaders(text)
		prep.fingerprint = sniffer.Fingerprint(prep.headers)
	}

	switch {
	case opts.Mapping != nil:
		prep.mapping, prep.source = *opts.Mapping, MappingFromRequest
	case opts.HasHeader:
		saved, err := s.repo.GetMappingByFingerprint(ctx, prep.fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup mapping: %w", err)
		}
		if saved != nil {
			prep.mapping, prep.source = saved.Mapping, MappingSaved
		} else {
			prep.mapping, prep.source = sniffer.AutoDetectMapping(prep.headers), MappingAutoDetect
		}
	default:
		prep.mapping, prep.source = sniffer.EmptyMapping(), MappingAutoDetect
	}

	if err := prep.mapping.Validate(); err != nil {
		return nil, err
	}
	if err := checkColumns(prep.mapping, prep.headers); err != nil {
		return nil, err
	}

	prep.result, err = p.ParseTransactions(text, prep.mapping, sourceID)
	if err != nil {
		return nil, err
	}
	return prep, nil
}

// sampleRows returns up to n raw data rows for dialect probing.
func (p *prepared) sampleRows(n int) [][]string {
	lines := parser.SplitLines(p.text)
	if p.parser.Config().HasHeader && len(lines) > 0 {
		lines = lines[1:]
	}

	rows := make([][]string, 0, n)
	for _, line := range lines {
		if len(rows) == n {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, p.parser.ParseLine(line))
	}
	return rows
}

func (p *prepared) dialect(n int) sniffer.Dialect {
	cols := sniffer.DialectColumns{
		Amounts:  []int{p.mapping.Amount},
		Date:     p.mapping.Date,
		Currency: -1,
	}
	if p.mapping.IsDoubleEntry() {
		cols.Amounts = []int{p.mapping.Debit, p.mapping.Credit}
	}
	if p.parser.Config().HasHeader {
		cols.Currency = sniffer.CurrencyColumn(p.headers)
	}
	return sniffer.ProbeDialect(p.sampleRows(n), cols)
}

// Preview parses a file without storing it and enriches the first rows.
func (s *ImportService) Preview(ctx context.Context, req PreviewRequest) (_ *PreviewResult, err error) {
	ctx, span := s.tracer.Start(ctx, "import.Preview", trace.WithAttributes(attribute.Int64("source_id", req.SourceID)))
	defer func() { endSpan(span, err) }()
	defer s.metrics.observe("preview", time.Now())

	prep, err := s.prepare(ctx, req.Content, req.SourceID, req.Options)
	if err != nil {
		return nil, err
	}

	txs := prep.result.Transactions
	if len(txs) > s.previewLimit {
		txs = txs[:s.previewLimit]
	}

	rows, err := s.enrich(ctx, req.SourceID, txs, true, true)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("rows.total", prep.result.TotalRows))

	return &PreviewResult{
		Headers:       prep.headers,
		Fingerprint:   prep.fingerprint,
		Delimiter:     string(prep.parser.Config().Delimiter),
		Mapping:       prep.mapping,
		MappingSource: prep.source,
		Dialect:       prep.dialect(s.previewLimit),
		TotalRows:     prep.result.TotalRows,
		Rows:          rows,
		Errors:        prep.result.Errors,
	}, nil
}

// Import parses a file, drops duplicates, assigns suggestions and stores the rest.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (_ *ImportResult, err error) {
	ctx, span := s.tracer.Start(ctx, "import.Import", trace.WithAttributes(attribute.Int64("source_id", req.SourceID)))
	defer func() { endSpan(span, err) }()
	defer s.metrics.observe("import", time.Now())

	prep, err := s.prepare(ctx, req.Content, req.SourceID, req.Options)
	if err != nil {
		return nil, err
	}

	currency, err := resolveCurrency(req.Currency, prep.dialect(s.previewLimit).CurrencyHint, s.defaultCurrency)
	if err != nil {
		return nil, err
	}

	parsed := prep.result.Transactions
	s.metrics.addRows(OutcomeParsed, len(parsed))
	s.metrics.addRows(OutcomeFailed, len(prep.result.Errors))

	duplicate, err := s.findDuplicates(ctx, req.SourceID, parsed)
	if err != nil {
		return nil, err
	}

	fresh := make([]parser.ParsedTransaction, 0, len(parsed))
	for i, tx := range parsed {
		if !duplicate[i] {
			fresh = append(fresh, tx)
		}
	}
	duplicates := len(parsed) - len(fresh)

	rows, err := s.enrich(ctx, req.SourceID, fresh, false, !req.SkipSuggestions)
	if err != nil {
		return nil, err
	}

	records := make([]repository.Transaction, len(rows))
	amounts := make([]decimal.Decimal, len(rows))
	for i, row := range rows {
		records[i] = toRecord(req.SourceID, currency, row)
		amounts[i] = row.Amount
	}

	imported, err := s.repo.InsertTransactions(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transactions: %w", err)
	}
	// Rows stored by a concurrent import between the lookup and the insert.
	duplicates += len(records) - imported

	s.metrics.addRows(OutcomeDuplicate, duplicates)
	s.metrics.addRows(OutcomeImported, imported)

	moneyIn, moneyOut, err := money.Totals(amounts, currency)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("rows.total", prep.result.TotalRows),
		attribute.Int("rows.imported", imported),
		attribute.Int("rows.duplicate", duplicates),
	)
	s.logger.InfoContext(ctx, "import completed",
		slog.Int64("source_id", req.SourceID),
		slog.String("mapping_source", string(prep.source)),
		slog.Int("total_rows", prep.result.TotalRows),
		slog.Int("imported", imported),
		slog.Int("duplicates", duplicates),
		slog.Int("failed", len(prep.result.Errors)),
	)

	return &ImportResult{
		Imported:     imported,
		Duplicates:   duplicates,
		TotalRows:    prep.result.TotalRows,
		Errors:       prep.result.Errors,
		Currency:     currency,
		MoneyIn:      moneyIn.Display(),
		MoneyOut:     moneyOut.Display(),
		Transactions: rows,
	}, nil
}

// SaveMapping stores a confirmed mapping keyed by the header fingerprint
func (s *ImportService) SaveMapping(ctx context.Context, req SaveMappingRequest) (*repository.BankMapping, error) {
	if len(req.Headers) == 0 {
		return nil, fmt.Errorf("%w: headers are required", ErrInvalidRequest)
	}
	if err := req.Mapping.Validate(); err != nil {
		return nil, err
	}
	if err := checkColumns(req.Mapping, req.Headers); err != nil {
		return nil, err
	}

	delimiter := req.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	if err := (parser.Config{Delimiter: delimiter}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	m := &repository.BankMapping{
		Fingerprint: sniffer.Fingerprint(req.Headers),
		Delimiter:   string(delimiter),
		HasHeader:   req.HasHeader,
		Mapping:     req.Mapping,
	}
	if name := strings.TrimSpace(req.BankName); name != "" {
		m.BankName = &name
	}

	if err := s.repo.SaveMapping(ctx, m); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bank mapping saved",
		slog.Int64("mapping_id", m.ID),
		slog.String("fingerprint", m.Fingerprint),
	)
	return m, nil
}

// findDuplicates flags rows already stored for the source and repeats within the file.
// Lookups run concurrently; each result is written to its own index.
func (s *ImportService) findDuplicates(ctx context.Context, sourceID int64, txs []parser.ParsedTransaction) ([]bool, error) {
	duplicate := make([]bool, len(txs))

	seen := make(map[string]bool, len(txs))
	lookup := make([]int, 0, len(txs))
	for i, tx := range txs {
		if seen[tx.Hash] {
			duplicate[i] = true
			continue
		}
		seen[tx.Hash] = true
		lookup = append(lookup, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupConcurrency)
	for _, i := range lookup {
		g.Go(func() error {
			exists, err := s.repo.ExistsByHash(gctx, sourceID, txs[i].Hash)
			if err != nil {
				return fmt.Errorf("line %d: %w", txs[i].Line, err)
			}
			duplicate[i] = exists
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}
	return duplicate, nil
}

// enrich wraps txs into rows, optionally flagging duplicates and applying rule suggestions.
func (s *ImportService) enrich(ctx context.Context, sourceID int64, txs []parser.ParsedTransaction, flagDuplicates, suggest bool) ([]Row, error) {
	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i].ParsedTransaction = tx
	}
	if len(rows) == 0 {
		return rows, nil
	}

	if flagDuplicates {
		duplicate, err := s.findDuplicates(ctx, sourceID, txs)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Duplicate = duplicate[i]
		}
	}

	if !suggest {
		return rows, nil
	}
	if err := s.suggest(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ImportService) suggest(ctx context.Context, rows []Row) error {
	if s.suggester == nil || len(rows) == 0 {
		return nil
	}

	inputs := make([]RuleInput, len(rows))
	for i, row := range rows {
		inputs[i] = RuleInput{Description: row.Description, SourceCategory: row.SourceCategory}
	}

	suggestions, err := s.suggester.Suggest(ctx, inputs)
	if err != nil {
		return fmt.Errorf("failed to suggest categories: %w", err)
	}
	for i := range rows {
		if i < len(suggestions) {
			rows[i].SuggestedUnitID = suggestions[i].UnitID
			rows[i].SuggestedCategoryID = suggestions[i].CategoryID
		}
	}
	return nil
}

func toRecord(sourceID int64, currency string, row Row) repository.Transaction {
	// Dates were validated by the parser.
	date, _ := time.Parse(normalizer.ISODateLayout, row.Date)

	rec := repository.Transaction{
		SourceID:     sourceID,
		Hash:         row.Hash,
		Date:         date,
		Description:  row.Description,
		Amount:       row.Amount,
		CurrencyCode: currency,
		UnitID:       row.SuggestedUnitID,
		CategoryID:   row.SuggestedCategoryID,
	}
	if row.SourceCategory != "" {
		category := row.SourceCategory
		rec.SourceCategory = &category
	}
	if row.Notes != "" {
		notes := row.Notes
		rec.Notes = &notes
	}
	return rec
}

// checkColumns rejects mappings that point past the header row.
func checkColumns(m sniffer.ColumnMapping, headers []string) error {
	if len(headers) == 0 {
		return nil
	}
	for _, idx := range []int{m.Date, m.Description, m.Amount, m.Debit, m.Credit, m.SourceCategory, m.Notes} {
		if idx >= len(headers) {
			return fmt.Errorf("%w: column %d, file has %d", ErrColumnOutOfRange, idx, len(headers))
		}
	}
	return nil
}

func firstLine(text string) string {
	for _, line := range parser.SplitLines(text) {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

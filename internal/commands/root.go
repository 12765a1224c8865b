// Package commands implements the importer command line.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/parser"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
)

// fileOptions are the flags shared by every command that reads a statement.
type fileOptions struct {
	delimiter string
	noHeader  bool
	sourceID  int64
	mapping   string
	rulesPath string
	verbose   bool
}

func (o *fileOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.delimiter, "delimiter", "d", "", `field delimiter: ",", ";", "tab" or "|" (detected when empty)`)
	cmd.Flags().BoolVar(&o.noHeader, "no-header", false, "the first line is a transaction, not column names")
	cmd.Flags().Int64Var(&o.sourceID, "source-id", 0, "account the statement belongs to; part of the duplicate hash")
	cmd.Flags().StringVarP(&o.mapping, "mapping", "m", "", "explicit columns, e.g. date=0,description=2,debit=3,credit=4")
	cmd.Flags().StringVarP(&o.rulesPath, "rules", "r", "", "CSV file of unit and category rules to suggest from")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "log skipped rules and import progress")
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "importer",
		Short: "Preview and normalize bank statement exports",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(newPreviewCommand(), newNormalizeCommand())

	return rootCmd
}

// service builds an offline import service for opts.
func (o *fileOptions) service(cmd *cobra.Command) (*importservice.ImportService, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	svc := importservice.NewImportService(repository.NewMemoryImportRepository(), logger)
	if o.rulesPath == "" {
		return svc, nil
	}

	suggester, err := loadRules(cmd.Context(), o.rulesPath, logger)
	if err != nil {
		return nil, err
	}
	return svc.WithSuggester(suggester), nil
}

// readFile returns the statement content and the resolved read options.
// Workbooks are flattened to delimited text first.
func (o *fileOptions) readFile(path string) ([]byte, importservice.Options, error) {
	opts := importservice.Options{HasHeader: !o.noHeader}

	delimiter, err := parseDelimiter(o.delimiter)
	if err != nil {
		return nil, opts, err
	}
	opts.Delimiter = delimiter

	if o.mapping != "" {
		mapping, err := parseMapping(o.mapping)
		if err != nil {
			return nil, opts, err
		}
		opts.Mapping = &mapping
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Open(path)
		if err != nil {
			return nil, opts, err
		}
		defer f.Close()

		if opts.Delimiter == 0 {
			opts.Delimiter = ','
		}
		text, err := parser.WorkbookToText(f, opts.Delimiter)
		if err != nil {
			return nil, opts, err
		}
		return []byte(text), opts, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, opts, err
	}
	return content, opts, nil
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	d, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, parser.ErrInvalidDelimiter
	}
	if err := (parser.Config{Delimiter: d}).Validate(); err != nil {
		return 0, err
	}
	return d, nil
}

// parseMapping reads "field=index" pairs; unlisted fields stay unmapped.
func parseMapping(s string) (sniffer.ColumnMapping, error) {
	columns := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		name, idx, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return sniffer.ColumnMapping{}, fmt.Errorf("invalid mapping entry %q, want field=index", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 0 {
			return sniffer.ColumnMapping{}, fmt.Errorf("invalid column index in %q", pair)
		}
		columns[strings.ToLower(strings.TrimSpace(name))] = n
	}

	raw, err := json.Marshal(columns)
	if err != nil {
		return sniffer.ColumnMapping{}, err
	}
	mapping := sniffer.EmptyMapping()
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return sniffer.ColumnMapping{}, err
	}

	for name := range columns {
		if mapping.Index(sniffer.Field(name)) < 0 {
			return sniffer.ColumnMapping{}, fmt.Errorf("unknown mapping field %q", name)
		}
	}
	return mapping, nil
}

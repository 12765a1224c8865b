package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
)

// normalizedRow is one output line of the normalize command.
type normalizedRow struct {
	Line           int    `csv:"line"`
	Date           string `csv:"date"`
	Description    string `csv:"description"`
	Amount         string `csv:"amount"`
	Currency       string `csv:"currency"`
	SourceCategory string `csv:"source_category"`
	Notes          string `csv:"notes"`
	UnitID         string `csv:"unit_id"`
	CategoryID     string `csv:"category_id"`
	Hash           string `csv:"hash"`
}

func newNormalizeCommand() *cobra.Command {
	var (
		opts     fileOptions
		currency string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Write the statement as normalized CSV, dropping duplicate rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, readOpts, err := opts.readFile(args[0])
			if err != nil {
				return err
			}

			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}

			result, err := svc.Import(cmd.Context(), importservice.ImportRequest{
				Content:         content,
				SourceID:        opts.sourceID,
				Currency:        currency,
				SkipSuggestions: opts.rulesPath == "",
				Options:         readOpts,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			if err := writeNormalized(out, result); err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "%d rows written, %d duplicates skipped, %d rejected (in %s, out %s)\n",
				result.Imported, result.Duplicates, len(result.Errors), result.MoneyIn, result.MoneyOut)
			for _, msg := range result.Errors {
				fmt.Fprintln(stderr, msg)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "ISO-4217 currency of the amounts (detected when empty)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout when empty)")

	return cmd
}

func writeNormalized(out io.Writer, res *importservice.ImportResult) error {
	rows := make([]normalizedRow, len(res.Transactions))
	for i, tx := range res.Transactions {
		rows[i] = normalizedRow{
			Line:           tx.Line,
			Date:           tx.Date,
			Description:    tx.Description,
			Amount:         tx.Amount.String(),
			Currency:       res.Currency,
			SourceCategory: tx.SourceCategory,
			Notes:          tx.Notes,
			UnitID:         optionalID(tx.SuggestedUnitID),
			CategoryID:     optionalID(tx.SuggestedCategoryID),
			Hash:           tx.Hash,
		}
	}
	return gocsv.Marshal(rows, out)
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return formatID(id)
}

package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
)

func newPreviewCommand() *cobra.Command {
	var (
		opts  fileOptions
		limit int
	)

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the detected layout and the first parsed rows of a statement",
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
			svc.WithLimits(limit, 0)

			result, err := svc.Preview(cmd.Context(), importservice.PreviewRequest{
				Content:  content,
				SourceID: opts.sourceID,
				Options:  readOpts,
			})
			if err != nil {
				return err
			}

			return writePreview(cmd.OutOrStdout(), result)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", importservice.DefaultPreviewLimit, "number of rows to show")

	return cmd
}

func writePreview(out io.Writer, res *importservice.PreviewResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	delimiter := strconv.Quote(res.Delimiter)
	fmt.Fprintf(tw, "Delimiter:\t%s\n", delimiter)
	fmt.Fprintf(tw, "Mapping:\t%s (%s)\n", describeMapping(res.Headers, res.Mapping), res.MappingSource)
	fmt.Fprintf(tw, "Dialect:\tdecimal %q, dates %s, confidence %.2f", res.Dialect.DecimalSeparator, res.Dialect.DateOrder, res.Dialect.Confidence)
	if res.Dialect.CurrencyHint != "" {
		fmt.Fprintf(tw, ", currency %s", res.Dialect.CurrencyHint)
	}
	fmt.Fprintf(tw, "\nRows:\t%d total, %d rejected\n\n", res.TotalRows, len(res.Errors))

	fmt.Fprintln(tw, "LINE\tDATE\tAMOUNT\tDESCRIPTION\tCATEGORY\tUNIT\tDUPLICATE")
	for _, row := range res.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
			row.Line, row.Date, row.Amount.StringFixed(2), row.Description,
			row.SourceCategory, formatID(row.SuggestedUnitID), row.Duplicate)
	}

	if len(res.Errors) > 0 {
		fmt.Fprintln(tw)
		for _, msg := range res.Errors {
			fmt.Fprintln(tw, msg)
		}
	}
	return tw.Flush()
}

// describeMapping renders "date=Date(0) amount=Amount(2) ..." for the mapped fields.
func describeMapping(headers []string, m sniffer.ColumnMapping) string {
	var out string
	for _, f := range []sniffer.Field{
		sniffer.FieldDate, sniffer.FieldDescription, sniffer.FieldAmount, sniffer.FieldDebit,
		sniffer.FieldCredit, sniffer.FieldSourceCategory, sniffer.FieldNotes,
	} {
		idx := m.Index(f)
		if idx < 0 {
			continue
		}
		if out != "" {
			out += " "
		}
		if idx < len(headers) {
			out += fmt.Sprintf("%s=%q(%d)", f, headers[idx], idx)
		} else {
			out += fmt.Sprintf("%s=%d", f, idx)
		}
	}
	return out
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/govatlas/catalog-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List ingestion run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 50, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func formatRuns(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTARTED\tDURATION\tFETCHED\tINS\tUPD\tUNCH\tERR\tMESSAGE")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------\t-------\t---\t---\t----\t---\t-------")

	for _, r := range runs {
		dur := time.Duration(r.EndedAt-r.StartedAt) * time.Millisecond
		msg := r.Message
		if len(msg) > 48 {
			msg = msg[:45] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.SourceRowID, r.Status,
			r.Started().Format(time.RFC3339), dur.Round(time.Millisecond),
			r.Fetched, r.Inserted, r.Updated, r.Unchanged, r.Errors, msg)
	}
	_ = w.Flush()
}

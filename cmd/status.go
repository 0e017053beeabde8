package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/govatlas/catalog-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source ingestion status",
	Long:  "Displays each registered source with its most recent run.",
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

		statuses, err := st.SourceStatuses(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(statuses) == 0 {
			fmt.Fprintln(os.Stderr, "No sources registered yet. Run 'catalog-cli run' first.")
			return nil
		}

		formatStatuses(os.Stdout, statuses)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func formatStatuses(out io.Writer, statuses []store.SourceStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tAUTHORITY\tLAST RUN\tSTATUS\tFETCHED\tERRORS")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t--------\t------\t-------\t------")

	for _, s := range statuses {
		lastRun := "-"
		status := "-"
		fetched := "-"
		errors := "-"
		if s.LastRun != nil {
			lastRun = s.LastRun.Started().Format(time.RFC3339)
			status = string(s.LastRun.Status)
			fetched = fmt.Sprintf("%d", s.LastRun.Fetched)
			errors = fmt.Sprintf("%d", s.LastRun.Errors)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.SourceRowID, s.Name, s.Authority, lastRun, status, fetched, errors)
	}
	_ = w.Flush()
}

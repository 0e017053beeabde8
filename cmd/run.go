package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/govatlas/catalog-cli/internal/catalog"
	"github.com/govatlas/catalog-cli/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion catalog",
	Long: `Run one ingestion cycle over the source registry.

By default, runs every source that is due per its schedule class.
Use --sources to restrict to specific source IDs.
Use --force to ignore schedule gating.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "run"))

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sourcesFlag, _ := cmd.Flags().GetString("sources")
		force, _ := cmd.Flags().GetBool("force")

		var ids []string
		if sourcesFlag != "" {
			ids = strings.Split(sourcesFlag, ",")
			for i := range ids {
				ids[i] = strings.TrimSpace(ids[i])
			}
		}
		sources, err := loadSources(ids)
		if err != nil {
			return err
		}

		runner, cleanup, err := buildRunner(ctx, st)
		if err != nil {
			return err
		}
		defer cleanup()

		log.Info("starting catalog run",
			zap.Int("sources", len(sources)),
			zap.Bool("force", force),
		)

		results := runner.RunOnce(ctx, sources, catalog.Options{Force: force})
		formatResults(os.Stdout, results)
		return nil
	},
}

func init() {
	runCmd.Flags().String("sources", "", "comma-separated source IDs (e.g., us-fed-grants-gov,ca-on-grants)")
	runCmd.Flags().Bool("force", false, "ignore schedule gating")
	rootCmd.AddCommand(runCmd)
}

// formatResults writes a tabular summary of per-source results to out.
func formatResults(out io.Writer, results []model.SourceResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tFETCHED\tINSERTED\tUPDATED\tUNCHANGED\tERRORS\tDURATION")
	_, _ = fmt.Fprintln(w, "------\t------\t-------\t--------\t-------\t---------\t------\t--------")

	for _, r := range results {
		status := string(r.Status)
		if r.Skipped {
			status = "skipped"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%dms\n",
			r.SourceID, status, r.Fetched, r.Inserted, r.Updated, r.Unchanged, r.Errors, r.DurationMs)
	}
	_ = w.Flush()
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/govatlas/catalog-cli/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered sources",
	Long:  "Displays the effective source registry: builtin sources merged with the configured overlay file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sources, err := loadSources(nil)
		if err != nil {
			return err
		}
		formatSources(os.Stdout, sources)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func formatSources(out io.Writer, sources []model.Source) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tPARSER\tJURISDICTION\tSCHEDULE\tRATE")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------------\t--------\t----")

	for _, s := range sources {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f/%d\n",
			s.ID, s.Kind, s.Parser, s.Jurisdiction, s.Schedule, s.Rate.RPS, s.Rate.Burst)
	}
	_ = w.Flush()
}

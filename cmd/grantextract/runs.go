package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/app"
)

func newRunsCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent runs, newest first",
		Long: `Reads the Postgres run ledger when database.dsn (or DATABASE_URL) is set,
otherwise run_metrics.csv in the output directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, closeFn, err := app.OpenRuns(cmd.Context(), c.cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}

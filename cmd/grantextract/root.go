package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/david/grant-extractor/internal/config"
)

// cli carries what the persistent pre-run resolved down to the subcommands.
type cli struct {
	cfgPath string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "grantextract",
		Short: "Extract structured grant records from funding pages with an LLM.",
		Long: `grantextract sends each source URL to a language model, repairs and
validates the JSON it returns, and appends the records to CSV files:
validated_grants.csv for records that pass the quality gate, a per-run
manual review file for the rest, and an invalid records file for anything
that could not be parsed. Every run appends one row to run_metrics.csv.`,
		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgPath, "config", "", "config file (YAML, JSON or TOML); settings can also come from GRANTS_* variables")

	cmd.AddCommand(newRunCmd(c))
	cmd.AddCommand(newSourcesCmd(c))
	cmd.AddCommand(newRunsCmd(c))

	return cmd
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/app"
	"github.com/david/grant-extractor/internal/ingest"
	"github.com/david/grant-extractor/internal/logging"
)

func newRunCmd(c *cli) *cobra.Command {
	var sourcesPath string

	cmd := &cobra.Command{
		Use:   "run [url...]",
		Short: "Run the extraction pipeline",
		Long: `Visits every active source in order. URLs given as arguments replace the
source list. Sources already present in validated_grants.csv are skipped, so
an interrupted run can simply be started again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireCredential(); err != nil {
				return err
			}

			sources := args
			if len(sources) == 0 {
				path := sourcesPath
				if path == "" {
					path = c.cfg.Pipeline.SourcesPath
				}
				loaded, err := ingest.LoadSources(path)
				if err != nil {
					return err
				}
				sources = loaded
			}

			logger, err := logging.New(c.cfg.Logging.Development, logging.RunLogPath(c.cfg.Logging.Dir, time.Now()))
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			a, err := app.New(ctx, c.cfg, logger)
			if err != nil {
				logger.Error("failed to initialize pipeline", zap.Error(err))
				return err
			}
			defer a.Close()

			m, runErr := a.Pipeline.Run(ctx, sources)
			if m.RunID != "" {
				renderSummary(cmd.OutOrStdout(), m)
			}
			if runErr != nil {
				if errors.Is(runErr, ctx.Err()) {
					return fmt.Errorf("run interrupted, rows written so far are kept: %w", runErr)
				}
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcesPath, "sources", "", "source list file (YAML or JSON), overrides pipeline.sources_path")
	return cmd
}

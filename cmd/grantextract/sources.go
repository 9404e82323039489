package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/grant-extractor/internal/ingest"
)

func newSourcesCmd(c *cli) *cobra.Command {
	var sourcesPath string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := sourcesPath
			if path == "" {
				path = c.cfg.Pipeline.SourcesPath
			}
			reg, err := ingest.LoadRegistry(path)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Name", "URL", "Active"})
			active := 0
			for i, s := range reg.Sources {
				if s.IsActive() {
					active++
				}
				t.AppendRow(table.Row{i + 1, s.Name, s.URL, s.IsActive()})
			}
			t.AppendFooter(table.Row{"", "", "active", active})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcesPath, "sources", "", "source list file (YAML or JSON), overrides pipeline.sources_path")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/grant-extractor/internal/models"
	"github.com/david/grant-extractor/internal/sink"
)

func renderSummary(w io.Writer, m models.RunMetrics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + m.RunID)
	t.AppendRows([]table.Row{
		{"Started", m.Timestamp.Format(time.RFC3339)},
		{"Duration", m.Duration.Round(time.Second).String()},
		{"Sources", fmt.Sprintf("%d total, %d processed, %d skipped, %d failed",
			m.SourcesTotal, m.SourcesProcessed, m.SourcesSkipped, m.SourcesFailed)},
		{"Records", fmt.Sprintf("%d total, %d valid, %d invalid", m.TotalRecords, m.ValidRecords, m.InvalidRecords)},
		{"Accepted", m.HighQualityRecords},
		{"Manual review", m.ReviewRecords},
		{"Completeness", fmt.Sprintf("%.2f%%", m.CompletenessScore)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Currency", sink.FormatDistribution(m.CurrencyDistribution)},
		{"Funding type", sink.FormatDistribution(m.FundingTypeDistribution)},
		{"Funder type", sink.FormatDistribution(m.FunderTypeDistribution)},
		{"Repair stages", sink.FormatDistribution(m.RepairStages)},
	})
	t.Render()
}

func renderRuns(w io.Writer, runs []models.RunMetrics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Started", "Sources", "Failed", "Accepted", "Review", "Invalid", "Completeness", "Duration"})

	for _, m := range runs {
		t.AppendRow(table.Row{
			shortID(m.RunID),
			m.Timestamp.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d/%d", m.SourcesProcessed, m.SourcesTotal),
			m.SourcesFailed,
			m.HighQualityRecords,
			m.ReviewRecords,
			m.InvalidRecords,
			fmt.Sprintf("%.1f%%", m.CompletenessScore),
			m.Duration.Round(time.Second).String(),
		})
	}
	if len(runs) == 0 {
		t.AppendRow(table.Row{"no runs recorded"})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

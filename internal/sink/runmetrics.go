package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/david/grant-extractor/internal/models"
)

// MetricsColumns is the column order of run_metrics.csv.
var MetricsColumns = []string{
	"run_id", "timestamp",
	"sources_total", "sources_skipped", "sources_processed", "sources_failed",
	"total_records", "valid_records", "high_quality_records", "review_records", "invalid_records",
	"completeness_score",
	"currency_distribution", "funding_type_distribution", "funder_type_distribution", "repair_stages",
	"avg_sectors", "avg_geographies", "avg_org_types", "avg_equity_focus", "avg_grant_purposes",
	"duration_seconds",
}

// FlattenRunMetrics renders m in MetricsColumns order.
func FlattenRunMetrics(m models.RunMetrics) []string {
	return []string{
		m.RunID, m.Timestamp.UTC().Format(time.RFC3339),
		strconv.Itoa(m.SourcesTotal), strconv.Itoa(m.SourcesSkipped), strconv.Itoa(m.SourcesProcessed), strconv.Itoa(m.SourcesFailed),
		strconv.Itoa(m.TotalRecords), strconv.Itoa(m.ValidRecords), strconv.Itoa(m.HighQualityRecords), strconv.Itoa(m.ReviewRecords), strconv.Itoa(m.InvalidRecords),
		decimal(m.CompletenessScore),
		FormatDistribution(m.CurrencyDistribution), FormatDistribution(m.FundingTypeDistribution),
		FormatDistribution(m.FunderTypeDistribution), FormatDistribution(m.RepairStages),
		decimal(m.AvgSectors), decimal(m.AvgGeographies), decimal(m.AvgOrgTypes), decimal(m.AvgEquityFocus), decimal(m.AvgGrantPurposes),
		decimal(m.Duration.Seconds()),
	}
}

func decimal(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// FormatDistribution renders counts as "KEY=n; KEY=n" sorted by key.
func FormatDistribution(dist map[string]int) string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, dist[k]))
	}
	return strings.Join(parts, listSep)
}

// ParseDistribution is the inverse of FormatDistribution.
func ParseDistribution(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed distribution entry %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("malformed distribution count %q: %w", part, err)
		}
		out[strings.TrimSpace(k)] = n
	}
	return out, nil
}

// ReadRunMetrics loads every row of a run_metrics.csv, oldest first. A
// missing file yields nil and no error.
func ReadRunMetrics(path string) ([]models.RunMetrics, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var out []models.RunMetrics
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		m, err := parseRunMetrics(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRunMetrics(row map[string]string) (models.RunMetrics, error) {
	p := rowParser{row: row}
	m := models.RunMetrics{
		RunID:              row["run_id"],
		Timestamp:          p.timeCol("timestamp"),
		SourcesTotal:       p.intCol("sources_total"),
		SourcesSkipped:     p.intCol("sources_skipped"),
		SourcesProcessed:   p.intCol("sources_processed"),
		SourcesFailed:      p.intCol("sources_failed"),
		TotalRecords:       p.intCol("total_records"),
		ValidRecords:       p.intCol("valid_records"),
		HighQualityRecords: p.intCol("high_quality_records"),
		ReviewRecords:      p.intCol("review_records"),
		InvalidRecords:     p.intCol("invalid_records"),
		CompletenessScore:  p.floatCol("completeness_score"),

		CurrencyDistribution:    p.distCol("currency_distribution"),
		FundingTypeDistribution: p.distCol("funding_type_distribution"),
		FunderTypeDistribution:  p.distCol("funder_type_distribution"),
		RepairStages:            p.distCol("repair_stages"),

		AvgSectors:       p.floatCol("avg_sectors"),
		AvgGeographies:   p.floatCol("avg_geographies"),
		AvgOrgTypes:      p.floatCol("avg_org_types"),
		AvgEquityFocus:   p.floatCol("avg_equity_focus"),
		AvgGrantPurposes: p.floatCol("avg_grant_purposes"),
		Duration:         time.Duration(p.floatCol("duration_seconds") * float64(time.Second)),
	}
	return m, p.err
}

// rowParser keeps the first conversion error so callers check once.
type rowParser struct {
	row map[string]string
	err error
}

func (p *rowParser) fail(col string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (p *rowParser) intCol(col string) int {
	v := p.row[col]
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(col, err)
	}
	return n
}

func (p *rowParser) floatCol(col string) float64 {
	v := p.row[col]
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, err)
	}
	return f
}

func (p *rowParser) timeCol(col string) time.Time {
	v := p.row[col]
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		p.fail(col, err)
	}
	return t
}

func (p *rowParser) distCol(col string) map[string]int {
	d, err := ParseDistribution(p.row[col])
	if err != nil {
		p.fail(col, err)
	}
	return d
}

// RunLog serves run history straight from a run_metrics.csv when no
// database ledger is configured.
type RunLog struct {
	Path string
}

// ListRuns returns up to limit runs, newest first.
func (l RunLog) ListRuns(_ context.Context, limit int) ([]models.RunMetrics, error) {
	runs, err := ReadRunMetrics(l.Path)
	if err != nil {
		return nil, err
	}
	slices.Reverse(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

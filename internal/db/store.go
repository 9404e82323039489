package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/david/grant-extractor/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// RunStore reads and writes rows of grant_extraction_runs. It satisfies the
// pipeline's metrics mirror.
type RunStore struct {
	db Querier
}

func NewRunStore(db Querier) *RunStore {
	return &RunStore{db: db}
}

const runCols = `run_id, started_at,
	sources_total, sources_skipped, sources_processed, sources_failed,
	total_records, valid_records, high_quality_records, review_records, invalid_records,
	completeness_score,
	currency_distribution, funding_type_distribution, funder_type_distribution, repair_stages,
	avg_sectors, avg_geographies, avg_org_types, avg_equity_focus, avg_grant_purposes,
	duration_ms`

// AppendRun inserts m. Writing the same run twice is a no-op.
func (s *RunStore) AppendRun(ctx context.Context, m models.RunMetrics) error {
	dists := make([][]byte, 0, 4)
	for _, d := range []map[string]int{
		m.CurrencyDistribution, m.FundingTypeDistribution, m.FunderTypeDistribution, m.RepairStages,
	} {
		b, err := marshalDistribution(d)
		if err != nil {
			return err
		}
		dists = append(dists, b)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO grant_extraction_runs (`+runCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (run_id) DO NOTHING`,
		m.RunID, m.Timestamp.UTC(),
		m.SourcesTotal, m.SourcesSkipped, m.SourcesProcessed, m.SourcesFailed,
		m.TotalRecords, m.ValidRecords, m.HighQualityRecords, m.ReviewRecords, m.InvalidRecords,
		m.CompletenessScore,
		dists[0], dists[1], dists[2], dists[3],
		m.AvgSectors, m.AvgGeographies, m.AvgOrgTypes, m.AvgEquityFocus, m.AvgGrantPurposes,
		m.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", m.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit is clamped to 1..500,
// with 0 meaning the default of 20.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]models.RunMetrics, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.Query(ctx, `SELECT `+runCols+` FROM grant_extraction_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunMetrics
	for rows.Next() {
		var (
			m                              models.RunMetrics
			currency, fundingType, funders []byte
			stages                         []byte
			durationMS                     int64
		)
		if err := rows.Scan(
			&m.RunID, &m.Timestamp,
			&m.SourcesTotal, &m.SourcesSkipped, &m.SourcesProcessed, &m.SourcesFailed,
			&m.TotalRecords, &m.ValidRecords, &m.HighQualityRecords, &m.ReviewRecords, &m.InvalidRecords,
			&m.CompletenessScore,
			&currency, &fundingType, &funders, &stages,
			&m.AvgSectors, &m.AvgGeographies, &m.AvgOrgTypes, &m.AvgEquityFocus, &m.AvgGrantPurposes,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		for _, d := range []struct {
			raw []byte
			dst *map[string]int
		}{
			{currency, &m.CurrencyDistribution},
			{fundingType, &m.FundingTypeDistribution},
			{funders, &m.FunderTypeDistribution},
			{stages, &m.RepairStages},
		} {
			if err := unmarshalDistribution(d.raw, d.dst); err != nil {
				return nil, fmt.Errorf("run %s: %w", m.RunID, err)
			}
		}
		m.Timestamp = m.Timestamp.UTC()
		m.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func marshalDistribution(d map[string]int) ([]byte, error) {
	if d == nil {
		d = map[string]int{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode distribution: %w", err)
	}
	return b, nil
}

func unmarshalDistribution(raw []byte, dst *map[string]int) error {
	out := map[string]int{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("failed to decode distribution: %w", err)
		}
	}
	*dst = out
	return nil
}

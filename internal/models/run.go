package models

import (
	"time"
)

// RunMetrics summarizes one pipeline run. It is written once at the end of
// the run and never modified.
type RunMetrics struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`

	SourcesTotal     int `json:"sources_total"`
	SourcesSkipped   int `json:"sources_skipped"`
	SourcesProcessed int `json:"sources_processed"`
	SourcesFailed    int `json:"sources_failed"`

	TotalRecords       int `json:"total_records"`
	ValidRecords       int `json:"valid_records"`
	HighQualityRecords int `json:"high_quality_records"`
	ReviewRecords      int `json:"review_records"`
	InvalidRecords     int `json:"invalid_records"`

	// CompletenessScore is the percentage of required fields populated
	// across valid records.
	CompletenessScore float64 `json:"completeness_score"`

	CurrencyDistribution    map[string]int `json:"currency_distribution"`
	FundingTypeDistribution map[string]int `json:"funding_type_distribution"`
	FunderTypeDistribution  map[string]int `json:"funder_type_distribution"`
	RepairStages            map[string]int `json:"repair_stages"`

	AvgSectors       float64 `json:"avg_sectors"`
	AvgGeographies   float64 `json:"avg_geographies"`
	AvgOrgTypes      float64 `json:"avg_org_types"`
	AvgEquityFocus   float64 `json:"avg_equity_focus"`
	AvgGrantPurposes float64 `json:"avg_grant_purposes"`

	Duration time.Duration `json:"duration"`
}

package sink

import (
	"path/filepath"

	"github.com/david/grant-extractor/internal/models"
)

const (
	AcceptedFile = "validated_grants.csv"
	MetricsFile  = "run_metrics.csv"
)

// Outputs groups the four sinks of one run. The accepted and metrics files
// are shared across runs and appended under a lock; the review and invalid
// files are per run and only created when something is written to them.
type Outputs struct {
	Accepted *CSVFile
	Review   *CSVFile
	Invalid  *CSVFile
	Metrics  *CSVFile
}

// NewOutputs lays out the sinks under dir. stamp distinguishes the per-run
// files, e.g. "20250601_120000".
func NewOutputs(dir, stamp string) *Outputs {
	return &Outputs{
		Accepted: NewCSVFile(filepath.Join(dir, AcceptedFile), GrantColumns, true),
		Review:   NewCSVFile(filepath.Join(dir, "manual_review_"+stamp+".csv"), GrantColumns, false),
		Invalid:  NewCSVFile(filepath.Join(dir, "invalid_records_"+stamp+".csv"), InvalidColumns, false),
		Metrics:  NewCSVFile(filepath.Join(dir, MetricsFile), MetricsColumns, true),
	}
}

func (o *Outputs) WriteAccepted(grants []models.Grant) error {
	return o.Accepted.Append(grantRows(grants))
}

func (o *Outputs) WriteReview(grants []models.Grant) error {
	return o.Review.Append(grantRows(grants))
}

func (o *Outputs) WriteInvalid(records []models.InvalidRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, FlattenInvalid(r))
	}
	return o.Invalid.Append(rows)
}

func (o *Outputs) WriteRunMetrics(m models.RunMetrics) error {
	return o.Metrics.Append([][]string{FlattenRunMetrics(m)})
}

// ProcessedURLs reads the dedupe set from the accepted sink.
func (o *Outputs) ProcessedURLs() (map[string]struct{}, error) {
	return ReadProcessedURLs(o.Accepted.Path())
}

// WrittenFiles lists the paths this run appended to.
func (o *Outputs) WrittenFiles() []string {
	var out []string
	for _, f := range []*CSVFile{o.Accepted, o.Review, o.Invalid, o.Metrics} {
		if f.Written() {
			out = append(out, f.Path())
		}
	}
	return out
}

func grantRows(grants []models.Grant) [][]string {
	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, FlattenGrant(g))
	}
	return rows
}

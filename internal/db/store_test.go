package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-extractor/internal/models"
)

func sampleRun() models.RunMetrics {
	return models.RunMetrics{
		RunID:                   "run-1",
		Timestamp:               time.Unix(1750000000, 0).UTC(),
		SourcesTotal:            4,
		SourcesSkipped:          1,
		SourcesProcessed:        2,
		SourcesFailed:           1,
		TotalRecords:            6,
		ValidRecords:            5,
		HighQualityRecords:      3,
		ReviewRecords:           2,
		InvalidRecords:          1,
		CompletenessScore:       81.25,
		CurrencyDistribution:    map[string]int{"CAD": 5},
		FundingTypeDistribution: map[string]int{"GRANT": 4, "LOAN": 1},
		FunderTypeDistribution:  map[string]int{"FEDERAL_GRANT": 5},
		RepairStages:            map[string]int{"direct": 2},
		AvgSectors:              1.4,
		AvgGeographies:          2,
		Duration:                95 * time.Second,
	}
}

func TestAppendRunInsertsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	m := sampleRun()
	mock.ExpectExec("INSERT INTO grant_extraction_runs").
		WithArgs(
			m.RunID, m.Timestamp,
			4, 1, 2, 1,
			6, 5, 3, 2, 1,
			81.25,
			[]byte(`{"CAD":5}`), []byte(`{"GRANT":4,"LOAN":1}`), []byte(`{"FEDERAL_GRANT":5}`), []byte(`{"direct":2}`),
			1.4, 2.0, 0.0, 0.0, 0.0,
			int64(95000),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewRunStore(mock).AppendRun(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRunNilDistributions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	m := models.RunMetrics{RunID: "run-2", Timestamp: time.Unix(0, 0).UTC()}
	empty := []byte(`{}`)
	mock.ExpectExec("INSERT INTO grant_extraction_runs").
		WithArgs(
			"run-2", m.Timestamp,
			0, 0, 0, 0,
			0, 0, 0, 0, 0,
			0.0,
			empty, empty, empty, empty,
			0.0, 0.0, 0.0, 0.0, 0.0,
			int64(0),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewRunStore(mock).AppendRun(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRunWrapsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO grant_extraction_runs").WithArgs(anyArgs(22)...).WillReturnError(boom)

	err = NewRunStore(mock).AppendRun(context.Background(), sampleRun())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "run-1")
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var runColumns = []string{
	"run_id", "started_at",
	"sources_total", "sources_skipped", "sources_processed", "sources_failed",
	"total_records", "valid_records", "high_quality_records", "review_records", "invalid_records",
	"completeness_score",
	"currency_distribution", "funding_type_distribution", "funder_type_distribution", "repair_stages",
	"avg_sectors", "avg_geographies", "avg_org_types", "avg_equity_focus", "avg_grant_purposes",
	"duration_ms",
}

func TestListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Unix(1750000000, 0).UTC()
	rows := pgxmock.NewRows(runColumns).
		AddRow("run-2", started,
			3, 0, 3, 0,
			4, 4, 4, 0, 0,
			100.0,
			[]byte(`{"USD":4}`), []byte(`{"GRANT":4}`), []byte(`{}`), []byte(`{"direct":3}`),
			1.0, 1.0, 1.0, 0.0, 2.0,
			int64(1500)).
		AddRow("run-1", started.Add(-time.Hour),
			1, 0, 0, 1,
			1, 0, 0, 0, 1,
			0.0,
			[]byte(nil), []byte(`{}`), []byte(`{}`), []byte(`{}`),
			0.0, 0.0, 0.0, 0.0, 0.0,
			int64(0))

	mock.ExpectQuery("(?s)SELECT .* FROM grant_extraction_runs ORDER BY started_at DESC LIMIT").
		WithArgs(20).
		WillReturnRows(rows)

	runs, err := NewRunStore(mock).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, map[string]int{"USD": 4}, runs[0].CurrencyDistribution)
	assert.Equal(t, map[string]int{}, runs[0].FunderTypeDistribution)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.InDelta(t, 2.0, runs[0].AvgGrantPurposes, 1e-9)

	assert.Equal(t, "run-1", runs[1].RunID)
	assert.Equal(t, map[string]int{}, runs[1].CurrencyDistribution)
	assert.Equal(t, 1, runs[1].SourcesFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM grant_extraction_runs").
		WithArgs(500).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := NewRunStore(mock).ListRuns(context.Background(), 10_000)
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMigrations(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"001_grant_extraction_runs.sql"}, files)

	t.Run("applies pending", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("001_grant_extraction_runs.sql").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS grant_extraction_runs").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs("001_grant_extraction_runs.sql").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, ApplyMigrations(context.Background(), mock, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("001_grant_extraction_runs.sql").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, ApplyMigrations(context.Background(), mock, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

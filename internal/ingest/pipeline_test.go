package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/ai"
	"github.com/david/grant-extractor/internal/artifact"
	"github.com/david/grant-extractor/internal/models"
	"github.com/david/grant-extractor/internal/sink"
)

type fakeExtractor struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.replies[url], nil
}

type recordingMirror struct {
	runs []models.RunMetrics
}

func (m *recordingMirror) AppendRun(_ context.Context, r models.RunMetrics) error {
	m.runs = append(m.runs, r)
	return nil
}

type recordingUploader struct {
	paths []string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, paths []string) error {
	u.paths = append(u.paths, paths...)
	return u.err
}

// scriptedGenerator replays canned model replies.
type scriptedGenerator struct {
	replies []string
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(context.Context, ai.Request) (string, error) {
	if len(g.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func grantJSON(name string, amountMax int) string {
	return fmt.Sprintf(`{"programName": %q, "programDescription": %q, "funderName": "Example Agency",
		"funderType": "FEDERAL_GRANT", "fundingStructure": {"fundingType": "GRANT", "amountMax": %d}}`,
		name, longDescription, amountMax)
}

func newTestPipeline(t *testing.T, ext Extractor, opts PipelineOptions) *Pipeline {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	p := NewPipeline(ext, newTestValidator(t, nil), NewQualityGate(0, nil), opts, zap.NewNop())
	p.now = func() time.Time { return fixedNow }
	return p
}

func sourceURLs(t *testing.T, path string) []string {
	t.Helper()
	urls, err := sink.ReadColumn(path, "sourceURL")
	require.NoError(t, err)
	return urls
}

func TestPipelineFencedReplyProducesOneAcceptedRow(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(filepath.Join(dir, "raw"))
	require.NoError(t, err)

	gen := &scriptedGenerator{replies: []string{
		"Here you go:\n```json\n[" + grantJSON("Green Fund", 50000) + "]\n```\nLet me know if you need more.",
	}}
	ext := ai.NewExtractor(gen, ai.ExtractorConfig{MaxAttempts: 1}, store, zap.NewNop())
	p := newTestPipeline(t, ext, PipelineOptions{OutputDir: dir})

	m, err := p.Run(context.Background(), []string{"https://example.org/green"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.SourcesTotal)
	assert.Equal(t, 1, m.SourcesProcessed)
	assert.Equal(t, 1, m.ValidRecords)
	assert.Equal(t, 1, m.HighQualityRecords)
	assert.Equal(t, 0, m.InvalidRecords)
	assert.Equal(t, 1, m.TotalRecords)
	assert.Equal(t, map[string]int{"direct": 1}, m.RepairStages)
	assert.Equal(t, map[string]int{"CAD": 1}, m.CurrencyDistribution)

	assert.Equal(t, []string{"https://example.org/green"}, sourceURLs(t, filepath.Join(dir, sink.AcceptedFile)))

	runs, err := sink.ReadRunMetrics(filepath.Join(dir, sink.MetricsFile))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, m.RunID, runs[0].RunID)
}

func TestPipelineRoutesRecords(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{
		replies: map[string]string{
			"https://a.example": "[" + grantJSON("Accepted", 1000) + `, {"programName": "Thin"}, {"programName": "Negative", "fundingStructure": {"amountMax": -1}}]`,
		},
		errs: map[string]error{
			"https://b.example": errors.New("model unavailable"),
		},
	}
	mirror := &recordingMirror{}
	uploader := &recordingUploader{}
	p := newTestPipeline(t, ext, PipelineOptions{OutputDir: dir, Mirrors: []MetricsMirror{mirror}, Uploader: uploader})

	m, err := p.Run(context.Background(), []string{"https://a.example", "https://b.example", "https://a.example"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, ext.calls)
	assert.Equal(t, 3, m.SourcesTotal)
	assert.Equal(t, 1, m.SourcesProcessed)
	assert.Equal(t, 1, m.SourcesFailed)
	assert.Equal(t, 1, m.SourcesSkipped)
	assert.Equal(t, 2, m.ValidRecords)
	assert.Equal(t, 1, m.HighQualityRecords)
	assert.Equal(t, 1, m.ReviewRecords)
	assert.Equal(t, 2, m.InvalidRecords)
	assert.Equal(t, 4, m.TotalRecords)

	stamp := fixedNow.UTC().Format("20060102_150405")
	review := filepath.Join(dir, "manual_review_"+stamp+".csv")
	invalid := filepath.Join(dir, "invalid_records_"+stamp+".csv")

	assert.Len(t, sourceURLs(t, review), 1)

	data, err := os.ReadFile(invalid)
	require.NoError(t, err)
	assert.Contains(t, string(data), "amountMax must be non-negative")
	assert.Contains(t, string(data), "extraction failed: model unavailable")

	require.Len(t, mirror.runs, 1)
	assert.Equal(t, m.RunID, mirror.runs[0].RunID)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, sink.AcceptedFile),
		review,
		invalid,
		filepath.Join(dir, sink.MetricsFile),
	}, uploader.paths)
}

func TestPipelineRerunSkipsProcessedSources(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{replies: map[string]string{
		"https://a.example": "[" + grantJSON("One", 1000) + "]",
		"https://b.example": "[" + grantJSON("Two", 2000) + "]",
	}}
	sources := []string{"https://a.example", "https://b.example"}

	p := newTestPipeline(t, ext, PipelineOptions{OutputDir: dir})
	_, err := p.Run(context.Background(), sources)
	require.NoError(t, err)

	accepted := filepath.Join(dir, sink.AcceptedFile)
	before, err := os.ReadFile(accepted)
	require.NoError(t, err)

	m, err := p.Run(context.Background(), sources)
	require.NoError(t, err)

	after, err := os.ReadFile(accepted)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, m.SourcesSkipped)
	assert.Equal(t, 0, m.SourcesProcessed)
	assert.Len(t, ext.calls, 2)

	runs, err := sink.ReadRunMetrics(filepath.Join(dir, sink.MetricsFile))
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPipelineEmptySourceList(t *testing.T) {
	p := newTestPipeline(t, &fakeExtractor{}, PipelineOptions{})
	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestPipelineCancelledStillWritesMetrics(t *testing.T) {
	dir := t.TempDir()
	ext := &fakeExtractor{}
	mirror := &recordingMirror{}
	p := newTestPipeline(t, ext, PipelineOptions{OutputDir: dir, Mirrors: []MetricsMirror{mirror}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := p.Run(ctx, []string{"https://a.example"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.Contains(err.Error(), m.RunID))
	assert.Empty(t, ext.calls)

	runs, err := sink.ReadRunMetrics(filepath.Join(dir, sink.MetricsFile))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].SourcesTotal)
	assert.Len(t, mirror.runs, 1)
}

func TestPipelineHonoursDelay(t *testing.T) {
	ext := &fakeExtractor{replies: map[string]string{}}
	p := newTestPipeline(t, ext, PipelineOptions{Delay: 50 * time.Millisecond})

	start := time.Now()
	_, err := p.Run(context.Background(), []string{"https://a.example", "https://b.example", "https://c.example"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-extractor/internal/artifact"
)

type reply struct {
	text string
	err  error
}

type scriptedGenerator struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	last    Request
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = req
	r := g.replies[len(g.replies)-1]
	if g.calls < len(g.replies) {
		r = g.replies[g.calls]
	}
	g.calls++
	return r.text, r.err
}

func newTestExtractor(t *testing.T, gen Generator, store *artifact.Store) *Extractor {
	t.Helper()
	e := NewExtractor(gen, ExtractorConfig{
		MaxAttempts:     3,
		BaseBackoff:     time.Millisecond,
		Temperature:     0.3,
		MaxOutputTokens: 8096,
		Tools:           Tools{URLContext: true},
	}, store, nil)
	e.jitter = func() time.Duration { return 0 }
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestExtractRetriesEmptyThenSucceeds(t *testing.T) {
	store, err := artifact.New(t.TempDir())
	require.NoError(t, err)
	gen := &scriptedGenerator{replies: []reply{
		{text: ""},
		{text: "```json\n[{\"programName\":\"X\"}]\n```"},
	}}

	got, err := newTestExtractor(t, gen, store).Extract(context.Background(), "https://example.org/grants/green-fund")
	require.NoError(t, err)
	assert.Equal(t, `[{"programName":"X"}]`, got)
	assert.Equal(t, 2, gen.calls)

	assert.Equal(t, 0.3, gen.last.Temperature)
	assert.Equal(t, 8096, gen.last.MaxOutputTokens)
	assert.True(t, gen.last.Tools.URLContext)
	assert.Contains(t, gen.last.Prompt, "https://example.org/grants/green-fund")

	saved, err := os.ReadFile(filepath.Join(store.Dir(), "green-fund_2025-06-01.json"))
	require.NoError(t, err)
	assert.Equal(t, got, string(saved))
}

func TestExtractRetriesFenceOnlyReply(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{
		{text: "```json\n```"},
		{text: "Here is what I found:\n[{\"programName\":\"X\"}]"},
	}}

	got, err := newTestExtractor(t, gen, nil).Extract(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, `[{"programName":"X"}]`, got)
	assert.Equal(t, 2, gen.calls)
}

func TestExtractFenceOnlyEveryTime(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "```json\n\n```"}}}

	_, err := newTestExtractor(t, gen, nil).Extract(context.Background(), "https://example.org")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 3, gen.calls)
}

func TestExtractExhaustsAttempts(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{err: errors.New("connection reset")}}}

	_, err := newTestExtractor(t, gen, nil).Extract(context.Background(), "https://example.org")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 3, gen.calls)
}

func TestExtractEmptyEveryTime(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: ""}}}

	_, err := newTestExtractor(t, gen, nil).Extract(context.Background(), "https://example.org")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 3, gen.calls)
}

func TestExtractStopsOnPermanentError(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{err: &APIError{Provider: "gemini", StatusCode: http.StatusForbidden, Body: "API key invalid"}}}}

	_, err := newTestExtractor(t, gen, nil).Extract(context.Background(), "https://example.org")
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestExtractRetriesRateLimit(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{
		{err: &APIError{Provider: "gemini", StatusCode: http.StatusTooManyRequests}},
		{err: &APIError{Provider: "gemini", StatusCode: http.StatusServiceUnavailable}},
		{text: "[]"},
	}}

	got, err := newTestExtractor(t, gen, nil).Extract(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
	assert.Equal(t, 3, gen.calls)
}

func TestExtractBackoffHonorsCancellation(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{err: errors.New("boom")}}}
	e := newTestExtractor(t, gen, nil)
	e.cfg.BaseBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Extract(ctx, "https://example.org")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, gen.calls)
}

func TestBackoffSchedule(t *testing.T) {
	e := NewExtractor(&scriptedGenerator{}, ExtractorConfig{BaseBackoff: 2 * time.Second}, nil, nil)
	e.jitter = func() time.Duration { return 250 * time.Millisecond }

	assert.Equal(t, 2250*time.Millisecond, e.backoff(1))
	assert.Equal(t, 4250*time.Millisecond, e.backoff(2))
	assert.Equal(t, 8250*time.Millisecond, e.backoff(3))
}

func TestDefaultJitterWithinOneSecond(t *testing.T) {
	e := NewExtractor(&scriptedGenerator{}, ExtractorConfig{}, nil, nil)
	for i := 0; i < 100; i++ {
		j := e.jitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, time.Second)
	}
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		assert.Equalf(t, tt.want, err.Retryable(), "status %d", tt.code)
	}
}

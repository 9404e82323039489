package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-extractor/internal/models"
)

const testSecret = "s3cret"

type blockingRunner struct {
	mu      sync.Mutex
	sources [][]string
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, sources []string) (models.RunMetrics, error) {
	r.mu.Lock()
	r.sources = append(r.sources, sources)
	r.mu.Unlock()

	m := models.RunMetrics{RunID: "run-1", SourcesTotal: len(sources)}
	select {
	case <-r.release:
		return m, r.err
	case <-ctx.Done():
		return m, ctx.Err()
	}
}

func (r *blockingRunner) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.sources...)
}

type staticRuns struct {
	runs  []models.RunMetrics
	err   error
	limit int
}

func (s *staticRuns) ListRuns(_ context.Context, limit int) ([]models.RunMetrics, error) {
	s.limit = limit
	return s.runs, s.err
}

func newTestServer(t *testing.T, runner Runner, runs RunLister, sources SourceFunc) *Server {
	t.Helper()
	s, err := NewServer(runner, runs, sources, Options{AdminSecret: testSecret}, nil)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func admin() map[string]string {
	return map[string]string{"X-Admin-Secret": testSecret}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func waitForStatus(t *testing.T, s *Server, id, want string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.Eventually(t, func() bool {
		rec := do(s, http.MethodGet, "/api/v1/admin/job/"+id, "", admin())
		if rec.Code != http.StatusOK {
			return false
		}
		body = decode(t, rec)
		return body["status"] == want
	}, 2*time.Second, 10*time.Millisecond)
	return body
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, newBlockingRunner(), nil, nil)

	rec := do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grantextract_last_run_completeness_percent")
}

func TestListRuns(t *testing.T) {
	runs := &staticRuns{runs: []models.RunMetrics{{RunID: "b"}, {RunID: "a"}}}
	s := newTestServer(t, newBlockingRunner(), runs, nil)

	rec := do(s, http.MethodGet, "/api/v1/runs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRunsLimit, runs.limit)

	var got []models.RunMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].RunID)

	rec = do(s, http.MethodGet, "/api/v1/runs?limit=9999", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRunsLimit, runs.limit)

	rec = do(s, http.MethodGet, "/api/v1/runs?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runs.err = errors.New("db down")
	rec = do(s, http.MethodGet, "/api/v1/runs", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListRunsWithoutStore(t *testing.T) {
	s := newTestServer(t, newBlockingRunner(), nil, nil)
	rec := do(s, http.MethodGet, "/api/v1/runs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdminRequiresSecret(t *testing.T) {
	s := newTestServer(t, newBlockingRunner(), nil, nil)

	rec := do(s, http.MethodGet, "/api/v1/admin/job/abc", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/admin/job/abc", "", map[string]string{"X-Admin-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/admin/job/abc", "", map[string]string{"Authorization": "Bearer " + testSecret})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/admin/job/abc", "", admin())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEphemeralSecret(t *testing.T) {
	s, err := NewServer(newBlockingRunner(), nil, nil, Options{}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s.secret)

	rec := do(s, http.MethodGet, "/api/v1/admin/job/abc", "", map[string]string{"X-Admin-Secret": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTriggerRunLifecycle(t *testing.T) {
	runner := newBlockingRunner()
	s := newTestServer(t, runner, nil, nil)

	rec := do(s, http.MethodPost, "/api/v1/admin/runs", `{"sources": [" https://a.example/grant ", "", "https://b.example"]}`, admin())
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	id, _ := body["job_id"].(string)
	require.Len(t, id, 8)
	assert.Equal(t, "/api/v1/admin/job/"+id, body["poll"])
	assert.EqualValues(t, 2, body["sources"])

	running := waitForStatus(t, s, id, "running")
	assert.NotContains(t, running, "ended_at")

	rec = do(s, http.MethodPost, "/api/v1/admin/runs", `{"sources": ["https://c.example"]}`, admin())
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, id, decode(t, rec)["job_id"])

	close(runner.release)
	done := waitForStatus(t, s, id, "completed")
	assert.Contains(t, done, "duration")
	result, ok := done["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-1", result["run_id"])

	assert.Equal(t, [][]string{{"https://a.example/grant", "https://b.example"}}, runner.calls())

	rec = do(s, http.MethodGet, "/api/v1/admin/job/other", "", admin())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerRunDefaultSources(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("sink unwritable")
	close(runner.release)

	s := newTestServer(t, runner, nil, func() ([]string, error) {
		return []string{"https://default.example"}, nil
	})

	rec := do(s, http.MethodPost, "/api/v1/admin/runs", "", admin())
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec)["job_id"].(string)

	failed := waitForStatus(t, s, id, "failed")
	assert.Equal(t, "sink unwritable", failed["error"])
	assert.Equal(t, [][]string{{"https://default.example"}}, runner.calls())
}

func TestTriggerRunSourceErrors(t *testing.T) {
	s := newTestServer(t, newBlockingRunner(), nil, nil)
	rec := do(s, http.MethodPost, "/api/v1/admin/runs", `{"sources": []}`, admin())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/admin/runs", `{"sources": `, admin())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(t, newBlockingRunner(), nil, func() ([]string, error) {
		return nil, errors.New("no active sources")
	})
	rec = do(s, http.MethodPost, "/api/v1/admin/runs", "", admin())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no active sources")
}

func TestShutdownCancelsJob(t *testing.T) {
	runner := newBlockingRunner()
	s := newTestServer(t, runner, nil, nil)

	rec := do(s, http.MethodPost, "/api/v1/admin/runs", `{"sources": ["https://a.example"]}`, admin())
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec)["job_id"].(string)
	waitForStatus(t, s, id, "running")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	assert.Equal(t, "cancelled", s.runningJob.Status)
	assert.Equal(t, context.Canceled.Error(), s.runningJob.Error)
}

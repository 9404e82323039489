package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/metrics"
	"github.com/david/grant-extractor/internal/models"
)

const (
	defaultRunsLimit  = 20
	maxRunsLimit      = 500
	defaultJobTimeout = 2 * time.Hour
)

// Runner executes one pipeline run over a source list.
type Runner interface {
	Run(ctx context.Context, sources []string) (models.RunMetrics, error)
}

// RunLister returns recent runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunMetrics, error)
}

// SourceFunc resolves the default source list for a triggered run.
type SourceFunc func() ([]string, error)

type Options struct {
	AdminSecret string
	CORSOrigins []string
	JobTimeout  time.Duration
}

type Server struct {
	Echo *echo.Echo

	runner  Runner
	runs    RunLister
	sources SourceFunc
	logger  *zap.Logger
	secret  string
	timeout time.Duration

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, cancelled, failed
	Sources   int                `json:"sources"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    *models.RunMetrics `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
	done      chan struct{}
}

type triggerRequest struct {
	Sources []string `json:"sources"`
}

func NewServer(runner Runner, runs RunLister, sources SourceFunc, opts Options, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	secret := strings.TrimSpace(opts.AdminSecret)
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate admin secret fallback: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		logger.Warn("admin secret is not set; using ephemeral in-memory fallback secret")
	}

	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	metrics.Init()

	s := &Server{
		Echo:    e,
		runner:  runner,
		runs:    runs,
		sources: sources,
		logger:  logger,
		secret:  secret,
		timeout: timeout,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := s.Echo.Group("/api/v1")
	api.GET("/runs", s.handleListRuns)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/runs", s.handleTriggerRun)
	admin.GET("/job/:id", s.handleJobStatus)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.runs == nil {
		return c.JSON(http.StatusOK, []models.RunMetrics{})
	}

	limit := defaultRunsLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, err := s.runs.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
	}
	if runs == nil {
		runs = []models.RunMetrics{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleTriggerRun(c echo.Context) error {
	var req triggerRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
	}

	sources := cleanSources(req.Sources)
	if len(sources) == 0 {
		if s.sources == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "sources required"})
		}
		loaded, err := s.sources()
		if err != nil {
			s.logger.Error("failed to load sources", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load sources: " + err.Error()})
		}
		sources = loaded
	}
	if len(sources) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no sources configured"})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A run is already in progress",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle but preserves
	// request values. The job gets its own timeout.
	jobCtx, jobCancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.timeout)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		Sources:   len(sources),
		StartedAt: time.Now(),
		Cancel:    jobCancel,
		done:      make(chan struct{}),
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go s.runJob(jobCtx, job, sources)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Run started",
		"job_id":  jobID,
		"sources": len(sources),
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) runJob(ctx context.Context, job *backgroundJob, sources []string) {
	defer close(job.done)
	defer job.Cancel()

	logger := s.logger.With(zap.String("job_id", job.ID))
	logger.Info("run job started", zap.Int("sources", len(sources)))

	m, err := s.runner.Run(ctx, sources)

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job.EndedAt = time.Now()
	if m.RunID != "" {
		job.Result = &m
	}
	switch {
	case err == nil:
		job.Status = "completed"
		logger.Info("run job completed", zap.String("run_id", m.RunID))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		job.Status = "cancelled"
		job.Error = err.Error()
		logger.Warn("run job cancelled", zap.Error(err))
	default:
		job.Status = "failed"
		job.Error = err.Error()
		logger.Error("run job failed", zap.Error(err))
	}
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"sources":    job.Sources,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Check X-Admin-Secret header or Bearer token
		if s.secretMatches(c.Request().Header.Get("X-Admin-Secret")) {
			return next(c)
		}
		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") && s.secretMatches(authHeader[7:]) {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Server) secretMatches(candidate string) bool {
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.secret)) == 1
}

func cleanSources(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

// Shutdown stops accepting requests, cancels a running job and waits for it
// to write its metrics.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)

	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()
	if job != nil {
		job.Cancel()
		select {
		case <-job.done:
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

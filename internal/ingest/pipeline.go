package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/david/grant-extractor/internal/metrics"
	"github.com/david/grant-extractor/internal/models"
	"github.com/david/grant-extractor/internal/sink"
)

// Extractor returns candidate JSON text for one source URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// MetricsMirror receives a copy of every finished run's metrics.
type MetricsMirror interface {
	AppendRun(ctx context.Context, m models.RunMetrics) error
}

// Uploader copies output files somewhere else once a run finishes.
type Uploader interface {
	Upload(ctx context.Context, paths []string) error
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	OutputDir string
	// Delay is the minimum spacing between two extractions.
	Delay    time.Duration
	Mirrors  []MetricsMirror
	Uploader Uploader
}

// Pipeline walks a source list: extract, validate, gate and append each
// source's rows before moving on.
type Pipeline struct {
	extractor Extractor
	validator *Validator
	gate      QualityGate
	opts      PipelineOptions
	logger    *zap.Logger

	now func() time.Time
}

func NewPipeline(extractor Extractor, validator *Validator, gate QualityGate, opts PipelineOptions, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "data"
	}
	return &Pipeline{
		extractor: extractor,
		validator: validator,
		gate:      gate,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Run processes sources in order. Per-source failures are recorded and the
// run continues; the returned error is non-nil only for an empty source list
// or a cancelled context, in which case rows already written are kept and
// the metrics cover the sources visited so far.
func (p *Pipeline) Run(ctx context.Context, sources []string) (models.RunMetrics, error) {
	if len(sources) == 0 {
		return models.RunMetrics{}, ErrNoSources
	}

	start := p.now()
	runID := uuid.NewString()
	stamp := start.UTC().Format("20060102_150405")
	out := sink.NewOutputs(p.opts.OutputDir, stamp)
	tally := newRunTally(runID, start, len(sources))
	logger := p.logger.With(zap.String("run_id", runID))

	processed, err := out.ProcessedURLs()
	if err != nil {
		logger.Error("failed to load processed urls, nothing will be skipped", zap.Error(err))
		processed = map[string]struct{}{}
	}
	logger.Info("run started", zap.Int("sources", len(sources)), zap.Int("already_processed", len(processed)))

	p.validator.Reset()
	limiter := newDelayLimiter(p.opts.Delay)

	var runErr error
	for i, url := range sources {
		if _, done := processed[url]; done {
			logger.Info("skipping already processed source", zap.String("source", url))
			tally.skipped()
			metrics.ObserveSource("skipped")
			continue
		}
		processed[url] = struct{}{}

		waitStart := time.Now()
		if err := limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}
		metrics.ObserveRateLimitDelay(time.Since(waitStart))

		logger.Info("processing source",
			zap.Int("index", i+1), zap.Int("total", len(sources)), zap.String("source", url))

		if err := p.processSource(ctx, out, tally, url); err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	m := tally.finish(p.now().Sub(start))
	p.finish(ctx, out, m, logger)

	status := "completed"
	if runErr != nil {
		status = "cancelled"
		logger.Warn("run stopped early", zap.Error(runErr))
		runErr = fmt.Errorf("run %s stopped early: %w", runID, runErr)
	}
	metrics.ObserveRun(status, m.CompletenessScore)

	logger.Info("run finished",
		zap.String("status", status),
		zap.Int("sources_processed", m.SourcesProcessed),
		zap.Int("sources_skipped", m.SourcesSkipped),
		zap.Int("sources_failed", m.SourcesFailed),
		zap.Int("high_quality", m.HighQualityRecords),
		zap.Int("review", m.ReviewRecords),
		zap.Int("invalid", m.InvalidRecords),
		zap.Float64("completeness", m.CompletenessScore),
		zap.Duration("duration", m.Duration),
	)
	return m, runErr
}

// processSource handles one URL. It only returns an error when the context
// is done; everything else is recorded and swallowed.
func (p *Pipeline) processSource(ctx context.Context, out *sink.Outputs, tally *runTally, url string) error {
	logger := p.logger.With(zap.String("source", url))

	text, err := p.extractor.Extract(ctx, url)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return ctx.Err()
		}
		logger.Error("extraction failed", zap.Error(err))
		tally.failed()
		tally.invalid(1)
		metrics.ObserveSource("failed")
		metrics.ObserveRecord("invalid")
		p.write(logger, "invalid", out.WriteInvalid([]models.InvalidRecord{{
			SourceURL: url,
			Error:     "extraction failed: " + err.Error(),
		}}))
		return nil
	}

	batch := p.validator.Parse(text, url)
	tally.stage(batch.Stage)

	var accepted, review []models.Grant
	for _, g := range batch.Valid {
		if reasons := p.gate.Reasons(g); len(reasons) > 0 {
			logger.Info("grant routed to manual review",
				zap.String("grant_id", g.GrantID), zap.Strings("reasons", reasons))
			review = append(review, g)
			tally.valid(g, false)
			metrics.ObserveRecord("review")
			continue
		}
		accepted = append(accepted, g)
		tally.valid(g, true)
		metrics.ObserveRecord("accepted")
	}
	tally.invalid(len(batch.Invalid))
	for range batch.Invalid {
		metrics.ObserveRecord("invalid")
	}

	if len(accepted) > 0 {
		p.write(logger, "accepted", out.WriteAccepted(accepted))
	}
	if len(review) > 0 {
		p.write(logger, "review", out.WriteReview(review))
	}
	if len(batch.Invalid) > 0 {
		p.write(logger, "invalid", out.WriteInvalid(batch.Invalid))
	}

	tally.processed()
	metrics.ObserveSource("processed")
	logger.Info("source done",
		zap.String("stage", batch.Stage),
		zap.Int("accepted", len(accepted)),
		zap.Int("review", len(review)),
		zap.Int("invalid", len(batch.Invalid)))
	return nil
}

func (p *Pipeline) write(logger *zap.Logger, sinkName string, err error) {
	if err != nil {
		logger.Error("failed to write rows", zap.String("sink", sinkName), zap.Error(err))
	}
}

// finish persists the run metrics and mirrors outputs. It still runs when
// ctx is cancelled so a partial run leaves a metrics row behind.
func (p *Pipeline) finish(ctx context.Context, out *sink.Outputs, m models.RunMetrics, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	if err := out.WriteRunMetrics(m); err != nil {
		logger.Error("failed to write run metrics", zap.Error(err))
	}

	for _, mirror := range p.opts.Mirrors {
		if err := mirror.AppendRun(ctx, m); err != nil {
			logger.Error("failed to mirror run metrics", zap.Error(err))
		}
	}

	if p.opts.Uploader != nil {
		files := out.WrittenFiles()
		if err := p.opts.Uploader.Upload(ctx, files); err != nil {
			logger.Error("failed to upload outputs", zap.Error(err))
		} else {
			logger.Info("outputs uploaded", zap.Strings("files", files))
		}
	}
}

// newDelayLimiter spaces events at least delay apart. The first Wait
// returns immediately.
func newDelayLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

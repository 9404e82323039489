package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/artifact"
	"github.com/david/grant-extractor/internal/metrics"
)

// ExtractorConfig holds the knobs for one Extractor.
type ExtractorConfig struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	Temperature     float64
	MaxOutputTokens int
	Tools           Tools
}

// Extractor asks the model for records about a URL, retrying transient
// failures with exponential backoff, and returns sanitized candidate JSON.
type Extractor struct {
	gen       Generator
	cfg       ExtractorConfig
	artifacts *artifact.Store
	logger    *zap.Logger

	now    func() time.Time
	jitter func() time.Duration
}

func NewExtractor(gen Generator, cfg ExtractorConfig, artifacts *artifact.Store, logger *zap.Logger) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		gen:       gen,
		cfg:       cfg,
		artifacts: artifacts,
		logger:    logger,
		now:       time.Now,
		jitter:    func() time.Duration { return time.Duration(rand.Int64N(int64(time.Second))) },
	}
}

// Extract returns sanitized text for url, or an error wrapping
// ErrExtractionFailed once every attempt has failed.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	req := Request{
		Prompt:          BuildPrompt(url),
		Temperature:     e.cfg.Temperature,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
		Tools:           e.cfg.Tools,
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		e.logger.Info("extracting",
			zap.String("source", url), zap.Int("attempt", attempt), zap.Int("max_attempts", e.cfg.MaxAttempts))

		start := time.Now()
		text, err := e.gen.Generate(ctx, req)
		elapsed := time.Since(start)

		// A reply holding only code fences sanitizes to nothing and counts as empty.
		cleaned := ""
		if err == nil {
			cleaned = Sanitize(text)
		}

		switch {
		case err != nil:
			metrics.ObserveLLMAttempt("error", elapsed)
			lastErr = err
		case cleaned == "":
			metrics.ObserveLLMAttempt("empty", elapsed)
			lastErr = ErrEmptyResponse
		default:
			metrics.ObserveLLMAttempt("ok", elapsed)
			e.persist(url, cleaned)
			return cleaned, nil
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w for %s: %w", ErrExtractionFailed, url, ctx.Err())
		}
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.Retryable() {
			e.logger.Error("permanent model error, giving up", zap.String("source", url), zap.Error(lastErr))
			break
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		wait := e.backoff(attempt)
		e.logger.Warn("model request failed, retrying",
			zap.String("source", url), zap.Error(lastErr), zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w for %s: %w", ErrExtractionFailed, url, ctx.Err())
		case <-time.After(wait):
		}
	}

	e.logger.Error("all attempts failed", zap.String("source", url), zap.Error(lastErr))
	return "", fmt.Errorf("%w for %s: %w", ErrExtractionFailed, url, lastErr)
}

// backoff is base*2^(attempt-1) plus up to one second of jitter.
func (e *Extractor) backoff(attempt int) time.Duration {
	return e.cfg.BaseBackoff*time.Duration(1<<(attempt-1)) + e.jitter()
}

func (e *Extractor) persist(url, text string) {
	if e.artifacts == nil {
		return
	}
	base := fmt.Sprintf("%s_%s", artifact.SourceName(url), e.now().UTC().Format("2006-01-02"))
	path, err := e.artifacts.WriteUnique(base, ".json", []byte(text))
	if err != nil {
		e.logger.Warn("failed to save raw response", zap.String("source", url), zap.Error(err))
		return
	}
	e.logger.Info("raw response saved", zap.String("source", url), zap.String("path", path))
}

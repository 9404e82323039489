// Package metrics exposes Prometheus collectors for the extraction pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	llmAttemptsTotal        *prometheus.CounterVec
	llmRequestDuration      prometheus.Histogram
	repairTotal             *prometheus.CounterVec
	taxonomyDroppedTotal    *prometheus.CounterVec
	recordsTotal            *prometheus.CounterVec
	sourcesTotal            *prometheus.CounterVec
	runsTotal               *prometheus.CounterVec
	rateLimitDelaySeconds   prometheus.Histogram
	lastRunCompletenessRate prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		llmAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantextract_llm_attempts_total",
				Help: "Total number of LLM extraction attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		llmRequestDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "grantextract_llm_request_duration_seconds",
				Help:    "Histogram of LLM request latencies.",
				Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
			},
		)

		repairTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantextract_repair_total",
				Help: "Number of payloads recovered, labeled by the repair stage that succeeded.",
			},
			[]string{"stage"},
		)

		taxonomyDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantextract_taxonomy_dropped_total",
				Help: "Raw category values that could not be mapped, labeled by domain.",
			},
			[]string{"domain"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantextract_records_total",
				Help: "Records routed to a sink, labeled by disposition.",
			},
			[]string{"disposition"},
		)

		sourcesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantextract_sources_total",
				Help: "Sources visited, labeled by result.",
			},
			[]string{"result"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantextract_runs_total",
				Help: "Pipeline runs, labeled by status.",
			},
			[]string{"status"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "grantextract_rate_limit_delay_seconds",
				Help:    "Time spent waiting between sources.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		)

		lastRunCompletenessRate = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "grantextract_last_run_completeness_percent",
				Help: "Completeness score of the most recent run.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLLMAttempt records one extraction attempt and its latency.
func ObserveLLMAttempt(outcome string, duration time.Duration) {
	Init()
	llmAttemptsTotal.WithLabelValues(outcome).Inc()
	llmRequestDuration.Observe(duration.Seconds())
}

// ObserveRepair records which repair stage produced a parseable payload.
func ObserveRepair(stage string) {
	Init()
	repairTotal.WithLabelValues(stage).Inc()
}

// ObserveTaxonomyDrop records an unmapped category value.
func ObserveTaxonomyDrop(domain string) {
	Init()
	taxonomyDroppedTotal.WithLabelValues(domain).Inc()
}

// ObserveRecord records a record handed to the accepted, review or invalid sink.
func ObserveRecord(disposition string) {
	Init()
	recordsTotal.WithLabelValues(disposition).Inc()
}

// ObserveSource records the outcome of one source: processed, skipped or failed.
func ObserveSource(result string) {
	Init()
	sourcesTotal.WithLabelValues(result).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(status string, completeness float64) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	lastRunCompletenessRate.Set(completeness)
}

// ObserveRateLimitDelay records the duration of an inter-source wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

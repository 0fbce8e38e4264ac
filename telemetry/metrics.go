// Package telemetry provides Prometheus metrics, OpenTelemetry tracing
// setup, and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	AnalysesStarted   prometheus.Counter
	AnalysesFailed    prometheus.Counter
	AnalysesSucceeded prometheus.Counter
	SearchesTotal     *prometheus.CounterVec // by platform
	TokenRefreshes    prometheus.Counter
	FallbackTierUses  *prometheus.CounterVec // by chain, tier
	WatchCycles       prometheus.Counter

	// Histograms (seconds)
	UpstreamDuration *prometheus.HistogramVec // by platform
	AnalysisDuration prometheus.Observer

	// Gauges
	WatchActiveGauge prometheus.Gauge
	LastScoreGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		AnalysesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "audit_analyses_started_total", Help: "Number of channel analyses started"})
		AnalysesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "audit_analyses_failed_total", Help: "Number of channel analyses failed"})
		AnalysesSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "audit_analyses_succeeded_total", Help: "Number of channel analyses succeeded"})
		SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "audit_searches_total", Help: "Number of channel searches by platform"}, []string{"platform"})
		TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{Name: "audit_token_refreshes_total", Help: "Number of app token exchanges performed"})
		FallbackTierUses = promauto.NewCounterVec(prometheus.CounterOpts{Name: "audit_fallback_tier_total", Help: "Fetch-chain tier that ultimately served a request"}, []string{"chain", "tier"})
		WatchCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "audit_watch_cycles_total", Help: "Number of periodic re-analysis cycles"})
		UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "audit_upstream_request_duration_seconds", Help: "Upstream platform request duration seconds", Buckets: prometheus.DefBuckets}, []string{"platform"})
		AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "audit_analysis_duration_seconds", Help: "End-to-end analysis duration seconds", Buckets: prometheus.DefBuckets})
		WatchActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "audit_watch_active", Help: "Periodic re-analysis watcher active=1 idle=0"})
		LastScoreGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "audit_last_score", Help: "Botting-likelihood score of the most recent analysis"})
	})
}

// ObserveUpstream records one upstream request duration for a platform.
func ObserveUpstream(platform string, d time.Duration) {
	if UpstreamDuration != nil {
		UpstreamDuration.WithLabelValues(platform).Observe(d.Seconds())
	}
}

// CountFallbackTier records which tier served a chained fetch.
func CountFallbackTier(chain, tier string) {
	if FallbackTierUses != nil {
		FallbackTierUses.WithLabelValues(chain, tier).Inc()
	}
}

// CountTokenRefresh records one app token exchange.
func CountTokenRefresh() {
	if TokenRefreshes != nil {
		TokenRefreshes.Inc()
	}
}

// CountSearch records one search request for a platform.
func CountSearch(platform string) {
	if SearchesTotal != nil {
		SearchesTotal.WithLabelValues(platform).Inc()
	}
}

// SetWatchActive flips the watcher gauge.
func SetWatchActive(active bool) {
	if WatchActiveGauge != nil {
		if active {
			WatchActiveGauge.Set(1)
		} else {
			WatchActiveGauge.Set(0)
		}
	}
}

// SetLastScore records the score of the most recent analysis.
func SetLastScore(score int) {
	if LastScoreGauge != nil {
		LastScoreGauge.Set(float64(score))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}

// Package metrics exposes the Prometheus collectors shared by the scanner,
// the semantic judge, the pipeline and the network surfaces.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leakwatch"

var (
	// scansTotal counts completed scans.
	// Labels: mode (fast, deep), outcome (ok, skipped, degraded, error)
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "total",
		Help:      "Completed scans by mode and outcome",
	}, []string{"mode", "outcome"})

	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Scan latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"mode"})

	// findingsTotal counts emitted findings.
	// Labels: category, tier (empty in fast mode)
	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "findings_total",
		Help:      "Findings emitted by category and severity tier",
	}, []string{"category", "tier"})

	// candidatesDropped counts candidates discarded before becoming findings.
	// Labels: category, reason (validator, masked, dummy, below_threshold, overlap, fake)
	candidatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "candidates_dropped_total",
		Help:      "Candidates dropped by category and reason",
	}, []string{"category", "reason"})

	judgeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "latency_seconds",
		Help:      "Semantic judge call latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"judge", "status"})

	// judgeErrors counts failed judgments.
	// Labels: judge, error_type (timeout, circuit_open, rate_limited, error)
	judgeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "errors_total",
		Help:      "Semantic judge failures by type",
	}, []string{"judge", "error_type"})

	// BreakerState reports circuit breaker state per judge (0 closed, 1 open, 2 half-open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"judge"})

	// cacheLookups counts judgment cache lookups.
	// Labels: tier (memory, redis), result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "judge_cache",
		Name:      "lookups_total",
		Help:      "Judgment cache lookups by tier and result",
	}, []string{"tier", "result"})

	essScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "score",
		Name:      "ess",
		Help:      "Distribution of per-source exposure severity scores",
		Buckets:   []float64{0, 1, 2.5, 4, 5, 6, 7, 8, 9, 10},
	}, []string{"channel"})

	alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "fired_total",
		Help:      "Alert actions executed by rule and outcome",
	}, []string{"rule", "outcome"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Handled requests by transport, method and status",
	}, []string{"transport", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "request_duration_seconds",
		Help:      "Request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transport", "method"})
)

// RecordScan records a completed scan.
func RecordScan(mode, outcome string, d time.Duration) {
	scansTotal.WithLabelValues(mode, outcome).Inc()
	scanDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordFinding records one emitted finding.
func RecordFinding(category, tier string) {
	findingsTotal.WithLabelValues(category, tier).Inc()
}

// RecordDrop records one dropped candidate.
func RecordDrop(category, reason string) {
	candidatesDropped.WithLabelValues(category, reason).Inc()
}

// RecordJudgeCall records a judge call latency.
func RecordJudgeCall(judge string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	judgeLatency.WithLabelValues(judge, status).Observe(d.Seconds())
}

// RecordJudgeError records a failed judgment.
func RecordJudgeError(judge, errorType string) {
	judgeErrors.WithLabelValues(judge, errorType).Inc()
}

// RecordCacheLookup records a judgment cache lookup.
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordSourceScore records a per-source ESS.
func RecordSourceScore(channel string, score float64) {
	essScore.WithLabelValues(channel).Observe(score)
}

// RecordAlert records an alert action outcome.
func RecordAlert(rule, outcome string) {
	alertsFired.WithLabelValues(rule, outcome).Inc()
}

// RecordRequest records a served request.
func RecordRequest(transport, method, status string, d time.Duration) {
	requestsTotal.WithLabelValues(transport, method, status).Inc()
	requestDuration.WithLabelValues(transport, method).Observe(d.Seconds())
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/truthgauge/internal/model"
)

var (
	// AnalysesTotal counts pipeline runs by input kind and outcome
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgauge_analyses_total",
		Help: "Total analyses by input kind and outcome",
	}, []string{"input_kind", "outcome"})

	// StageDuration tracks latency per pipeline stage
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "truthgauge_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"stage"})

	// UpstreamRequests counts calls to external services by result
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgauge_upstream_requests_total",
		Help: "Requests to upstream services by service and result",
	}, []string{"service", "result"})

	// CacheLookups counts evidence cache lookups
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgauge_cache_lookups_total",
		Help: "Evidence cache lookups by result",
	}, []string{"result"})

	// VerdictConfidence tracks the distribution of final confidence values
	VerdictConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "truthgauge_verdict_confidence",
		Help:    "Confidence of produced verdicts in [0,1]",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// ObserveStage records how long a stage took
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Outcome maps a pipeline error to a low-cardinality label
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var e *model.Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	return "error"
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	TurnsTotal         *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
	MergeAnomalies     prometheus.Counter
	StageTransitions   prometheus.Counter
	GroundingFetches   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ReportsTotal       *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// NewCollector registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	serviceName = strings.ReplaceAll(serviceName, "-", "_")
	f := promauto.With(reg)
	return &Collector{
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "consultation",
			Name:      "turns_total",
			Help:      "Patient turns processed by outcome.",
		}, []string{"outcome"}),

		ExtractionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "failures_total",
			Help:      "Fact extraction passes that yielded no patch, by reason.",
		}, []string{"reason"}),

		MergeAnomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "merge_anomalies_total",
			Help:      "Patch fields skipped because of an unexpected shape.",
		}),

		StageTransitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "consultation",
			Name:      "differential_transitions_total",
			Help:      "Sessions that entered the differential-diagnosis stage.",
		}),

		GroundingFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "retrieval",
			Name:      "grounding_fetches_total",
			Help:      "Grounding requests by caller and outcome.",
		}, []string{"caller", "outcome"}),

		GenerationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "llm",
			Name:      "generation_duration_seconds",
			Help:      "Latency of text generation calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"purpose"}),

		ReportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "report",
			Name:      "built_total",
			Help:      "Diagnostic report builds by outcome.",
		}, []string{"outcome"}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "consultation",
			Name:      "active_sessions",
			Help:      "Consultation sessions currently held in memory.",
		}),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

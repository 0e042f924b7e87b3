// Package metrics exposes the reasoner's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/inference"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
	OutcomeEmpty   = "empty"
)

var (
	// EnrichTotal counts Enrich calls by outcome
	EnrichTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoreason_enrich_total",
			Help: "Total number of enrichment requests",
		},
		[]string{"outcome"},
	)

	// EnrichDuration tracks end-to-end Enrich latency
	EnrichDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ontoreason_enrich_duration_seconds",
			Help:    "Enrichment latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	// InferencePasses tracks passes per inference run
	InferencePasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ontoreason_inference_passes",
			Help:    "Passes needed to reach a fixed point",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 21, 50, 100},
		},
	)

	// InferredTriplesTotal counts derived triples
	InferredTriplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ontoreason_inferred_triples_total",
			Help: "Total number of triples added by inference",
		},
	)

	// InferenceCappedTotal counts runs stopped by the pass cap
	InferenceCappedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ontoreason_inference_capped_total",
			Help: "Inference runs that hit the pass cap before a fixed point",
		},
	)

	// QueryTotal counts pattern queries by outcome
	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoreason_query_total",
			Help: "Total number of pattern queries",
		},
		[]string{"outcome"},
	)

	// Violations reports the result of the latest consistency check
	Violations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ontoreason_violations",
			Help: "Violations found by the latest consistency check",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(EnrichTotal)
	prometheus.MustRegister(EnrichDuration)
	prometheus.MustRegister(InferencePasses)
	prometheus.MustRegister(InferredTriplesTotal)
	prometheus.MustRegister(InferenceCappedTotal)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(Violations)
}

// Recorder feeds the package collectors. The zero value is ready to use.
type Recorder struct{}

// ObserveInference implements inference.Observer.
func (Recorder) ObserveInference(r inference.Result) {
	InferencePasses.Observe(float64(r.Passes))
	InferredTriplesTotal.Add(float64(r.Added))
	if r.Capped {
		InferenceCappedTotal.Inc()
	}
}

// ObserveEnrich records one Enrich call.
func (Recorder) ObserveEnrich(outcome string, d time.Duration) {
	EnrichTotal.WithLabelValues(outcome).Inc()
	EnrichDuration.Observe(d.Seconds())
}

// ObserveQuery records one query.
func (Recorder) ObserveQuery(outcome string) {
	QueryTotal.WithLabelValues(outcome).Inc()
}

// ObserveViolations replaces the violation gauges with the counts in vs.
func (Recorder) ObserveViolations(vs []consistency.Violation) {
	counts := consistency.CountByKind(vs)
	for _, k := range []consistency.Kind{
		consistency.KindCardinality,
		consistency.KindRangeMismatch,
		consistency.KindDomainMismatch,
	} {
		Violations.WithLabelValues(string(k)).Set(float64(counts[k]))
	}
}

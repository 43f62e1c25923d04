// Package metrics enthält die Prometheus-Collectors, die unter /metrics exportiert werden.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PagesNormalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "math_showcase_pages_normalized_total",
			Help: "Total number of dataset pages rewritten by the batch normalizer.",
		},
	)
	FieldsChanged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "math_showcase_fields_changed_total",
			Help: "Total number of content fields whose text changed during normalization.",
		},
	)
	BatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "math_showcase_batch_runs_total",
			Help: "Batch normalization runs by final status.",
		},
		[]string{"status"},
	)
	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "math_showcase_batch_duration_seconds",
			Help:    "Wall time of batch normalization runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
	LatexRepairs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "math_showcase_latex_repairs_total",
			Help: "Total number of text fields changed by the runtime LaTeX repairer.",
		},
	)
)

func init() {
	prometheus.MustRegister(PagesNormalized, FieldsChanged, BatchRuns, BatchDuration, LatexRepairs)
}

// Package metrics defines the Prometheus collectors exported by the planner.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Syntheses counts plan syntheses by the tier that produced the stored plan.
	Syntheses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_syntheses_total",
			Help: "Plan syntheses by resulting tier and reason",
		},
		[]string{"tier", "reason"},
	)

	// GenerationErrors counts classified generator failures.
	GenerationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_generation_errors_total",
			Help: "Content generator failures by backend and kind",
		},
		[]string{"backend", "kind"},
	)

	// GenerationDuration observes generator call latency.
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_generation_duration_seconds",
			Help:    "Duration of content generator calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"backend"},
	)

	// Toggles counts progress toggles by resulting state.
	Toggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_progress_toggles_total",
			Help: "Progress toggles by resulting completion state",
		},
		[]string{"completed"},
	)

	// Promotions counts course level promotions driven by assessments.
	Promotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_level_promotions_total",
			Help: "Course level promotions from assessment results",
		},
	)

	registerOnce sync.Once
)

// Register adds all collectors to the default registry. Repeated calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Syntheses, GenerationErrors, GenerationDuration, Toggles, Promotions)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

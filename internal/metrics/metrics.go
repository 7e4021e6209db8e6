package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for the learning core.
//
// Metrics:
//   - lexiday_gate_checks_total{result} - allowed, blocked or degraded daily gate decisions
//   - lexiday_ledger_inserts_total{outcome} - created, already_existed, failed or refused word inserts
//   - lexiday_lessons_served_total{source} - generator, bank or fallback lessons
//   - lexiday_store_degraded_total{op} - reads/writes that substituted a default after an error
//   - lexiday_deletion_steps_total{step,status} - account deletion pipeline steps
type Metrics struct {
	GateChecks     *prometheus.CounterVec
	LedgerInserts  *prometheus.CounterVec
	LessonsServed  *prometheus.CounterVec
	StoreDegraded  *prometheus.CounterVec
	DeletionSteps  *prometheus.CounterVec
	LessonDuration prometheus.Histogram
}

// New returns the process-wide metrics, registering them on first use.
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			GateChecks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lexiday_gate_checks_total",
					Help: "Daily gate decisions",
				},
				[]string{"result"},
			),
			LedgerInserts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lexiday_ledger_inserts_total",
					Help: "Learned-word insert outcomes",
				},
				[]string{"outcome"},
			),
			LessonsServed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lexiday_lessons_served_total",
					Help: "Lessons served by source",
				},
				[]string{"source"},
			),
			StoreDegraded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lexiday_store_degraded_total",
					Help: "Store operations that fell back to a default after an error",
				},
				[]string{"op"},
			),
			DeletionSteps: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lexiday_deletion_steps_total",
					Help: "Account deletion pipeline steps by status",
				},
				[]string{"step", "status"},
			),
			LessonDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "lexiday_lesson_generation_seconds",
					Help:    "Time spent waiting on the lesson generator",
					Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
				},
			),
		}
	})
	return globalMetrics
}

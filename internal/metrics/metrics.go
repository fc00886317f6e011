// Package metrics holds the Prometheus counters of a model run. A run writes
// them once at the end in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/segment"
)

// Run collects the metrics of one run on its own registry.
type Run struct {
	Registry *prometheus.Registry

	clamps   *prometheus.CounterVec
	faults   *prometheus.CounterVec
	segments *prometheus.CounterVec
	solve    prometheus.Histogram
}

// New registers the run metrics on a fresh registry.
func New() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		Registry: reg,
		clamps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "buma_clamp_events_total",
			Help: "Negative flow values clamped to zero, by flow",
		}, []string{"flow"}),
		faults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "buma_segment_faults_total",
			Help: "Segments dropped from the results, by failing stage",
		}, []string{"stage"}),
		segments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "buma_segments_total",
			Help: "Segments solved successfully, by area",
		}, []string{"area"}),
		solve: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "buma_segment_solve_seconds",
			Help:    "Wall time to solve and convert one segment",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}),
	}
}

// ObserveClamp implements cohort.ClampObserver.
func (r *Run) ObserveClamp(flow segment.Flow, n int) {
	r.clamps.WithLabelValues(string(flow)).Add(float64(n))
}

// ObserveFault counts a dropped segment.
func (r *Run) ObserveFault(stage cohort.Stage) {
	r.faults.WithLabelValues(string(stage)).Inc()
}

// ObserveSegment records one successfully solved segment.
func (r *Run) ObserveSegment(area segment.Area, took time.Duration) {
	r.segments.WithLabelValues(string(area)).Inc()
	r.solve.Observe(took.Seconds())
}

// WriteTextfile writes every metric to path.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

var _ cohort.ClampObserver = (*Run)(nil)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initFrameSetMetrics() {
	r.FrameSetsWrittenTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tng_frame_sets_written_total",
			Help: "Total number of frame sets written",
		},
	)

	r.FrameSetsReadTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tng_frame_sets_read_total",
			Help: "Total number of frame sets read",
		},
	)

	r.FrameSetWriteDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tng_frame_set_write_duration_seconds",
			Help:    "Frame set write duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.FrameSetReadDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tng_frame_set_read_duration_seconds",
			Help:    "Frame set read duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.ActiveFrameSets = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "tng_active_frame_sets",
			Help: "Frame sets currently built in memory and not yet written",
		},
	)

	r.FramesWrittenTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "tng_frames_written_total",
			Help: "Total number of simulation frames written",
		},
	)
}

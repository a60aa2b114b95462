package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCodecMetrics() {
	r.EncodeDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tng_codec_encode_duration_seconds",
			Help:    "Value codec encode duration in seconds, by algorithm",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
		},
		[]string{"algorithm"},
	)

	r.DecodeDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tng_codec_decode_duration_seconds",
			Help:    "Value codec decode duration in seconds, by algorithm",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
		},
		[]string{"algorithm"},
	)

	r.CompressionRatio = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tng_codec_compression_ratio",
			Help:    "Encoded size divided by raw size, by algorithm",
			Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1.0, 1.2},
		},
		[]string{"algorithm"},
	)
}

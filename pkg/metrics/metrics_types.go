// Package metrics exposes prometheus instrumentation for trajectory I/O.
//
// All metrics share the tng_ prefix. A Registry owns its own prometheus
// registry so that several containers in one process can either share the
// default instance or keep isolated ones (tests do the latter).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the library
type Registry struct {
	// Block I/O
	BlocksWrittenTotal     *prometheus.CounterVec
	BlocksReadTotal        *prometheus.CounterVec
	BlockBytesWrittenTotal *prometheus.CounterVec
	BlockBytesReadTotal    *prometheus.CounterVec
	DigestMismatchesTotal  *prometheus.CounterVec

	// Frame sets
	FrameSetsWrittenTotal prometheus.Counter
	FrameSetsReadTotal    prometheus.Counter
	FrameSetWriteDuration prometheus.Histogram
	FrameSetReadDuration  prometheus.Histogram
	ActiveFrameSets       prometheus.Gauge
	FramesWrittenTotal    prometheus.Counter

	// Value codec
	EncodeDuration   *prometheus.HistogramVec
	DecodeDuration   *prometheus.HistogramVec
	CompressionRatio *prometheus.HistogramVec

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initBlockMetrics()
	r.initFrameSetMetrics()
	r.initCodecMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

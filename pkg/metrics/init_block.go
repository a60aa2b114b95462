package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initBlockMetrics() {
	r.BlocksWrittenTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tng_blocks_written_total",
			Help: "Total number of blocks written, by block kind",
		},
		[]string{"kind"},
	)

	r.BlocksReadTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tng_blocks_read_total",
			Help: "Total number of blocks read, by block kind",
		},
		[]string{"kind"},
	)

	r.BlockBytesWrittenTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tng_block_bytes_written_total",
			Help: "Serialized block bytes written, by block kind",
		},
		[]string{"kind"},
	)

	r.BlockBytesReadTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tng_block_bytes_read_total",
			Help: "Serialized block bytes read, by block kind",
		},
		[]string{"kind"},
	)

	r.DigestMismatchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "tng_digest_mismatches_total",
			Help: "Blocks whose payload digest failed verification, by block kind",
		},
		[]string{"kind"},
	)
}

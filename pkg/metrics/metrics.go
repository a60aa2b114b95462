package metrics

import (
	"time"
)

// RecordBlockWrite records one serialized block leaving the writer
func (r *Registry) RecordBlockWrite(kind string, bytes int64) {
	r.BlocksWrittenTotal.WithLabelValues(kind).Inc()
	r.BlockBytesWrittenTotal.WithLabelValues(kind).Add(float64(bytes))
}

// RecordBlockRead records one serialized block entering the reader
func (r *Registry) RecordBlockRead(kind string, bytes int64) {
	r.BlocksReadTotal.WithLabelValues(kind).Inc()
	r.BlockBytesReadTotal.WithLabelValues(kind).Add(float64(bytes))
}

// RecordDigestMismatch records a failed payload digest verification
func (r *Registry) RecordDigestMismatch(kind string) {
	r.DigestMismatchesTotal.WithLabelValues(kind).Inc()
}

// RecordFrameSetWrite records a completed frame set write with its duration
func (r *Registry) RecordFrameSetWrite(frames int64, duration time.Duration) {
	r.FrameSetsWrittenTotal.Inc()
	r.FramesWrittenTotal.Add(float64(frames))
	r.FrameSetWriteDuration.Observe(duration.Seconds())
}

// RecordFrameSetRead records a completed frame set read with its duration
func (r *Registry) RecordFrameSetRead(duration time.Duration) {
	r.FrameSetsReadTotal.Inc()
	r.FrameSetReadDuration.Observe(duration.Seconds())
}

// FrameSetOpened marks a frame set under construction
func (r *Registry) FrameSetOpened() {
	r.ActiveFrameSets.Inc()
}

// FrameSetClosed marks a frame set written out or discarded
func (r *Registry) FrameSetClosed() {
	r.ActiveFrameSets.Dec()
}

// RecordEncode records one value codec encode pass
func (r *Registry) RecordEncode(algorithm string, duration time.Duration, ratio float64) {
	r.EncodeDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	r.CompressionRatio.WithLabelValues(algorithm).Observe(ratio)
}

// RecordDecode records one value codec decode pass
func (r *Registry) RecordDecode(algorithm string, duration time.Duration) {
	r.DecodeDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

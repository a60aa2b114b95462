package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	// Verify all metrics are initialized
	if r.BlocksWrittenTotal == nil {
		t.Error("BlocksWrittenTotal not initialized")
	}
	if r.BlocksReadTotal == nil {
		t.Error("BlocksReadTotal not initialized")
	}
	if r.DigestMismatchesTotal == nil {
		t.Error("DigestMismatchesTotal not initialized")
	}
	if r.FrameSetsWrittenTotal == nil {
		t.Error("FrameSetsWrittenTotal not initialized")
	}
	if r.EncodeDuration == nil {
		t.Error("EncodeDuration not initialized")
	}
	if r.CompressionRatio == nil {
		t.Error("CompressionRatio not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	// Should return the same instance
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordBlockWrite(t *testing.T) {
	r := NewRegistry()

	r.RecordBlockWrite("positions", 4096)
	r.RecordBlockWrite("positions", 2048)
	r.RecordBlockWrite("box shape", 128)

	counter, err := r.BlocksWrittenTotal.GetMetricWithLabelValues("positions")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("positions write count = %v, want 2", got)
	}

	bytes, err := r.BlockBytesWrittenTotal.GetMetricWithLabelValues("positions")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	metric.Reset()
	if err := bytes.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 6144 {
		t.Errorf("positions bytes written = %v, want 6144", got)
	}
}

func TestRecordDigestMismatch(t *testing.T) {
	r := NewRegistry()

	r.RecordDigestMismatch("velocities")

	counter, err := r.DigestMismatchesTotal.GetMetricWithLabelValues("velocities")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("digest mismatch count = %v, want 1", got)
	}
}

func TestRecordFrameSetWrite(t *testing.T) {
	r := NewRegistry()

	r.RecordFrameSetWrite(100, 25*time.Millisecond)
	r.RecordFrameSetWrite(100, 30*time.Millisecond)

	var metric dto.Metric
	if err := r.FrameSetsWrittenTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("frame sets written = %v, want 2", got)
	}

	metric.Reset()
	if err := r.FramesWrittenTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 200 {
		t.Errorf("frames written = %v, want 200", got)
	}
}

func TestActiveFrameSetsGauge(t *testing.T) {
	r := NewRegistry()

	r.FrameSetOpened()
	r.FrameSetOpened()
	r.FrameSetClosed()

	var metric dto.Metric
	if err := r.ActiveFrameSets.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetGauge().GetValue(); got != 1 {
		t.Errorf("active frame sets = %v, want 1", got)
	}
}

func TestRecordEncode(t *testing.T) {
	r := NewRegistry()

	r.RecordEncode("dictionary", 2*time.Millisecond, 0.31)

	hist, err := r.CompressionRatio.GetMetricWithLabelValues("dictionary")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := hist.(prometheus.Metric).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("ratio sample count = %v, want 1", got)
	}
	if got := metric.GetHistogram().GetSampleSum(); got != 0.31 {
		t.Errorf("ratio sample sum = %v, want 0.31", got)
	}
}

package codec

import (
	"math"

	"github.com/jbarnoud/tng/pkg/status"
)

// quantizeLimit keeps quantized magnitudes away from the int64 edge, so
// downstream delta arithmetic cannot be pushed out of range by rounding.
const quantizeLimit = float64(1 << 62)

// Quantizer converts floating-point values into integers and back at a
// fixed precision. Round-tripping a finite value recovers it to within
// half the precision.
type Quantizer struct {
	Precision float64
}

// NewQuantizer creates a quantizer. Precision must be positive and finite.
func NewQuantizer(precision float64) (*Quantizer, error) {
	if !(precision > 0) || math.IsInf(precision, 0) {
		return nil, status.Failuref("codec.quantizer", ErrNotQuantizable,
			"precision must be positive and finite, got %v", precision)
	}
	return &Quantizer{Precision: precision}, nil
}

// Quantize maps values onto the integer grid v/precision, rounded to
// nearest. Non-finite values or magnitudes beyond the representable range
// yield an error naming the offending index.
func (q *Quantizer) Quantize(values []float64) ([]int64, error) {
	out := make([]int64, len(values))
	for i, v := range values {
		scaled := v / q.Precision
		if math.IsNaN(scaled) || math.Abs(scaled) > quantizeLimit {
			return nil, status.Failuref("codec.quantize", ErrNotQuantizable,
				"value %v at index %d", v, i)
		}
		out[i] = int64(math.Round(scaled))
	}
	return out, nil
}

// Dequantize maps grid points back to floating point.
func (q *Quantizer) Dequantize(values []int64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v) * q.Precision
	}
	return out
}

// QuantizeFloat32 is Quantize for single-precision input.
func (q *Quantizer) QuantizeFloat32(values []float32) ([]int64, error) {
	out := make([]int64, len(values))
	for i, v := range values {
		scaled := float64(v) / q.Precision
		if math.IsNaN(scaled) || math.Abs(scaled) > quantizeLimit {
			return nil, status.Failuref("codec.quantize", ErrNotQuantizable,
				"value %v at index %d", v, i)
		}
		out[i] = int64(math.Round(scaled))
	}
	return out, nil
}

// DequantizeFloat32 maps grid points back to single precision.
func (q *Quantizer) DequantizeFloat32(values []int64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(float64(v) * q.Precision)
	}
	return out
}

// Package codec implements the integer value codec used by trajectory data
// blocks: several encoding algorithms over int64 sequences, a best-of
// selection mode, and a fixed-point quantizer bridging floating-point
// coordinates into the integer domain.
//
// Encoded streams are self-describing and byte-order neutral:
//
//	Format: [Algorithm:1][Count:uvarint][Metadata][Payload]
//
// Metadata and payload depend on the algorithm. Varints and MSB-first bit
// packing are used throughout, so the same stream decodes identically on
// any platform.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/jbarnoud/tng/pkg/status"
)

// Algorithm identifies one encoding scheme. The ids are stable on disk.
type Algorithm uint8

const (
	// AlgoFixedWidth shifts values by the block minimum and packs them at
	// the smallest width that spans the range.
	AlgoFixedWidth Algorithm = 0
	// AlgoDictionary codes each value with a canonical prefix-free
	// dictionary built from the block's histogram.
	AlgoDictionary Algorithm = 1
	// AlgoTripleDelta stores residuals against the previous value triple,
	// exploiting correlation between neighboring particles in one frame.
	AlgoTripleDelta Algorithm = 2
	// AlgoFrameDelta stores residuals against the same value in the
	// previous frame, exploiting correlation across time.
	AlgoFrameDelta Algorithm = 3

	// AlgoBest is a request, not a wire id: try every applicable
	// algorithm and keep the smallest stream, ties to the lowest id.
	AlgoBest Algorithm = 255
)

// String returns the algorithm's metric label
func (a Algorithm) String() string {
	switch a {
	case AlgoFixedWidth:
		return "fixed-width"
	case AlgoDictionary:
		return "dictionary"
	case AlgoTripleDelta:
		return "triple-delta"
	case AlgoFrameDelta:
		return "frame-delta"
	case AlgoBest:
		return "best"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// MaxEncodedValues caps the declared value count of a single stream, so a
// corrupt header cannot trigger an absurd allocation.
const MaxEncodedValues = 1 << 31

// Encoded is one self-describing encoded stream.
type Encoded struct {
	Alg   Algorithm
	Count int
	wire  []byte
}

// Bytes returns the serialized stream. The slice is shared, not copied.
func (e *Encoded) Bytes() []byte { return e.wire }

// Len returns the serialized stream size in bytes.
func (e *Encoded) Len() int { return len(e.wire) }

// Decode recovers the original values.
func (e *Encoded) Decode() ([]int64, error) {
	return Decode(e.wire)
}

// Encode serializes values with the requested algorithm. frameStride is
// the number of values making up one frame sample; AlgoFrameDelta uses it
// as its lag and the other algorithms ignore it. AlgoBest tries every
// applicable algorithm and keeps the smallest stream.
func Encode(values []int64, alg Algorithm, frameStride int) (*Encoded, error) {
	const op = "codec.encode"
	if len(values) == 0 {
		return nil, status.Failuref(op, ErrEmptyInput, "no values")
	}
	if len(values) > MaxEncodedValues {
		return nil, status.Failuref(op, ErrNotApplicable, "%d values exceeds the per-stream limit", len(values))
	}

	switch alg {
	case AlgoFixedWidth:
		return &Encoded{Alg: alg, Count: len(values), wire: encodeFixed(values)}, nil

	case AlgoDictionary:
		wire, err := encodeDict(values)
		if err != nil {
			return nil, status.Wrap(status.Recoverable, op, nil, err)
		}
		return &Encoded{Alg: alg, Count: len(values), wire: wire}, nil

	case AlgoTripleDelta:
		if len(values)%3 != 0 || len(values) < 6 {
			return nil, status.Failuref(op, ErrNotApplicable,
				"triple delta needs at least two triples, got %d values", len(values))
		}
		return &Encoded{Alg: alg, Count: len(values), wire: encodeDelta(values, 3, alg)}, nil

	case AlgoFrameDelta:
		if frameStride <= 0 || frameStride >= len(values) {
			return nil, status.Failuref(op, ErrNotApplicable,
				"frame delta needs 0 < frame stride < %d, got %d", len(values), frameStride)
		}
		return &Encoded{Alg: alg, Count: len(values), wire: encodeDelta(values, frameStride, alg)}, nil

	case AlgoBest:
		return encodeBest(values, frameStride)

	default:
		return nil, status.Failuref(op, ErrUnknownAlgorithm, "algorithm %d", uint8(alg))
	}
}

// encodeBest runs every applicable algorithm and keeps the smallest
// stream. Ties go to the lowest algorithm id because candidates are tried
// in id order and replaced only on a strictly smaller size.
func encodeBest(values []int64, frameStride int) (*Encoded, error) {
	var best *Encoded
	for _, alg := range []Algorithm{AlgoFixedWidth, AlgoDictionary, AlgoTripleDelta, AlgoFrameDelta} {
		e, err := Encode(values, alg, frameStride)
		if err != nil {
			if errors.Is(err, ErrNotApplicable) || errors.Is(err, ErrDictionaryTooLarge) {
				continue
			}
			return nil, err
		}
		if best == nil || e.Len() < best.Len() {
			best = e
		}
	}
	return best, nil
}

// Unmarshal validates the stream header and wraps the bytes without
// decoding the payload.
func Unmarshal(data []byte) (*Encoded, error) {
	alg, count, _, err := parseHeader(data)
	if err != nil {
		return nil, status.Wrap(status.Recoverable, "codec.unmarshal", nil, err)
	}
	return &Encoded{Alg: alg, Count: count, wire: data}, nil
}

// Decode recovers the values of a serialized stream. Malformed input
// yields a recoverable error, never a panic.
func Decode(data []byte) ([]int64, error) {
	vals, err := decodeWire(data)
	if err != nil {
		return nil, status.Wrap(status.Recoverable, "codec.decode", nil, err)
	}
	return vals, nil
}

func parseHeader(data []byte) (alg Algorithm, count, headerLen int, err error) {
	if len(data) < 2 {
		return 0, 0, 0, ErrShortStream
	}
	alg = Algorithm(data[0])
	switch alg {
	case AlgoFixedWidth, AlgoDictionary, AlgoTripleDelta, AlgoFrameDelta:
	default:
		return 0, 0, 0, fmt.Errorf("%w: id %d", ErrUnknownAlgorithm, data[0])
	}
	count64, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: bad value count", ErrCorruptStream)
	}
	if count64 == 0 || count64 > MaxEncodedValues {
		return 0, 0, 0, fmt.Errorf("%w: declared value count %d", ErrCorruptStream, count64)
	}
	return alg, int(count64), 1 + n, nil
}

func decodeWire(data []byte) ([]int64, error) {
	alg, count, headerLen, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[headerLen:]
	switch alg {
	case AlgoFixedWidth:
		return decodeFixed(body, count)
	case AlgoDictionary:
		return decodeDict(body, count)
	case AlgoTripleDelta:
		return decodeDelta(body, count, 3)
	case AlgoFrameDelta:
		return decodeDelta(body, count, 0)
	default:
		return nil, ErrUnknownAlgorithm
	}
}

// Fixed-width metadata: [Min:varint][Width:1], payload Count*Width bits.
func encodeFixed(values []int64) []byte {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := uint64(max) - uint64(min)
	width := uint(bits.Len64(span))

	buf := getByteSlice(len(values) + 16)
	buf = append(buf, byte(AlgoFixedWidth))
	buf = binary.AppendUvarint(buf, uint64(len(values)))
	buf = binary.AppendVarint(buf, min)
	buf = append(buf, byte(width))
	if width > 0 {
		w := newBitWriter((len(values)*int(width) + 7) / 8)
		for _, v := range values {
			w.WriteBits(uint64(v)-uint64(min), width)
		}
		buf = append(buf, w.Bytes()...)
	}

	out := make([]byte, len(buf))
	copy(out, buf)
	putByteSlice(buf)
	return out
}

func decodeFixed(body []byte, count int) ([]int64, error) {
	min, n := binary.Varint(body)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad minimum", ErrCorruptStream)
	}
	body = body[n:]
	if len(body) < 1 {
		return nil, ErrShortStream
	}
	width := uint(body[0])
	body = body[1:]
	if width > 64 {
		return nil, fmt.Errorf("%w: bit width %d", ErrCorruptStream, width)
	}

	out := make([]int64, count)
	if width == 0 {
		for i := range out {
			out[i] = min
		}
		if len(body) != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, len(body))
		}
		return out, nil
	}

	need := (count*int(width) + 7) / 8
	if len(body) < need {
		return nil, ErrShortStream
	}
	if len(body) > need {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, len(body)-need)
	}
	r := newBitReader(body)
	for i := range out {
		v, err := r.ReadBits(width)
		if err != nil {
			return nil, err
		}
		out[i] = int64(uint64(min) + v)
	}
	return out, nil
}

// Dictionary metadata: [NSymbols:uvarint][Symbol0:varint]
// [SymbolDelta:uvarint]*(N-1)[Length:1]*N, payload is the code bitstream.
func encodeDict(values []int64) ([]byte, error) {
	d, err := NewDictionary(BuildHistogram(values))
	if err != nil {
		return nil, err
	}

	buf := getByteSlice(len(values) + 16)
	buf = append(buf, byte(AlgoDictionary))
	buf = binary.AppendUvarint(buf, uint64(len(values)))
	buf = binary.AppendUvarint(buf, uint64(len(d.Symbols)))
	buf = binary.AppendVarint(buf, d.Symbols[0])
	for i := 1; i < len(d.Symbols); i++ {
		buf = binary.AppendUvarint(buf, uint64(d.Symbols[i])-uint64(d.Symbols[i-1]))
	}
	buf = append(buf, d.Lengths...)

	w := newBitWriter(len(values))
	for _, v := range values {
		if err := d.appendCode(w, v); err != nil {
			putByteSlice(buf)
			return nil, err
		}
	}
	buf = append(buf, w.Bytes()...)

	out := make([]byte, len(buf))
	copy(out, buf)
	putByteSlice(buf)
	return out, nil
}

func decodeDict(body []byte, count int) ([]int64, error) {
	nsym64, n := binary.Uvarint(body)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad symbol count", ErrCorruptStream)
	}
	body = body[n:]
	if nsym64 == 0 || nsym64 > MaxDictionarySymbols {
		return nil, fmt.Errorf("%w: declared %d symbols", ErrCorruptStream, nsym64)
	}
	nsym := int(nsym64)

	symbols := make([]int64, nsym)
	first, n := binary.Varint(body)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad first symbol", ErrCorruptStream)
	}
	body = body[n:]
	symbols[0] = first
	for i := 1; i < nsym; i++ {
		delta, n := binary.Uvarint(body)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad symbol delta", ErrCorruptStream)
		}
		if delta == 0 {
			return nil, fmt.Errorf("%w: duplicate symbol", ErrCorruptStream)
		}
		body = body[n:]
		symbols[i] = int64(uint64(symbols[i-1]) + delta)
	}

	if len(body) < nsym {
		return nil, ErrShortStream
	}
	lengths := make([]uint8, nsym)
	copy(lengths, body[:nsym])
	body = body[nsym:]

	d, err := NewDictionaryFromLengths(symbols, lengths)
	if err != nil {
		return nil, err
	}

	r := newBitReader(body)
	out := make([]int64, count)
	for i := range out {
		v, err := d.decodeSymbol(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if rest := len(body) - r.pos; rest > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, rest)
	}
	return out, nil
}

// Delta metadata: frame delta stores [Lag:uvarint]; triple delta's lag of
// 3 is implied by the algorithm id. Payload is Lag raw values followed by
// Count-Lag residuals, all signed varints.
func encodeDelta(values []int64, lag int, alg Algorithm) []byte {
	buf := getByteSlice(len(values)*2 + 16)
	buf = append(buf, byte(alg))
	buf = binary.AppendUvarint(buf, uint64(len(values)))
	if alg == AlgoFrameDelta {
		buf = binary.AppendUvarint(buf, uint64(lag))
	}
	for i := 0; i < lag; i++ {
		buf = binary.AppendVarint(buf, values[i])
	}
	for i := lag; i < len(values); i++ {
		buf = binary.AppendVarint(buf, values[i]-values[i-lag])
	}

	out := make([]byte, len(buf))
	copy(out, buf)
	putByteSlice(buf)
	return out
}

// decodeDelta decodes both delta flavors; lag 0 means "read it from the
// stream" (frame delta).
func decodeDelta(body []byte, count, lag int) ([]int64, error) {
	if lag == 0 {
		lag64, n := binary.Uvarint(body)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad lag", ErrCorruptStream)
		}
		body = body[n:]
		if lag64 == 0 || lag64 >= uint64(count) {
			return nil, fmt.Errorf("%w: lag %d for %d values", ErrCorruptStream, lag64, count)
		}
		lag = int(lag64)
	} else if count%lag != 0 || count < 2*lag {
		return nil, fmt.Errorf("%w: %d values for lag %d", ErrCorruptStream, count, lag)
	}

	out := make([]int64, count)
	for i := 0; i < lag; i++ {
		v, n := binary.Varint(body)
		if n <= 0 {
			return nil, ErrShortStream
		}
		body = body[n:]
		out[i] = v
	}
	for i := lag; i < count; i++ {
		r, n := binary.Varint(body)
		if n <= 0 {
			return nil, ErrShortStream
		}
		body = body[n:]
		out[i] = out[i-lag] + r
	}
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, len(body))
	}
	return out, nil
}

package frameset

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/codec"
)

// Shared zstd coders; EncodeAll/DecodeAll are safe for concurrent use.
var (
	zstdEncoder = mustZstdEncoder()
	zstdDecoder = mustZstdDecoder()
)

func mustZstdEncoder() *zstd.Encoder {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return e
}

func mustZstdDecoder() *zstd.Decoder {
	// Decoded payload sizes are bounded, so a corrupt frame header
	// cannot demand arbitrary memory.
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(1<<31))
	if err != nil {
		panic(err)
	}
	return d
}

const (
	// Frame set payload: [FirstFrame:8][NFrames:8][Next:8][Prev:8]
	// [MediumNext:8][MediumPrev:8][LongNext:8][LongPrev:8][NBlocks:8]
	// then [Kind:8][Offset:8][Length:8] per directory entry.
	fsPayloadFixed = 9 * 8
	tocEntryLen    = 3 * 8

	// Mapping payload: [FirstParticle:8][NParticles:8][Real:8xN].
	mapPayloadFixed = 2 * 8

	// Data payload: [Type:1][Codec:1][NFrames:8][ValuesPerFrame:8]
	// [Stride:8][FirstParticle:8][NParticles:8][Precision:8]
	// [EncodedLen:8][Encoded:N].
	dataPayloadFixed = 2 + 7*8
)

func appendU64(buf []byte, order binary.ByteOrder, v uint64) []byte {
	var u [8]byte
	order.PutUint64(u[:], v)
	return append(buf, u[:]...)
}

func appendI64(buf []byte, order binary.ByteOrder, v int64) []byte {
	return appendU64(buf, order, uint64(v))
}

func appendFrameSetPayload(fs *FrameSet, order binary.ByteOrder) []byte {
	buf := make([]byte, 0, fsPayloadFixed+len(fs.TOC)*tocEntryLen)
	buf = appendI64(buf, order, fs.FirstFrame)
	buf = appendI64(buf, order, fs.NFrames)
	buf = appendI64(buf, order, fs.Next)
	buf = appendI64(buf, order, fs.Prev)
	buf = appendI64(buf, order, fs.MediumNext)
	buf = appendI64(buf, order, fs.MediumPrev)
	buf = appendI64(buf, order, fs.LongNext)
	buf = appendI64(buf, order, fs.LongPrev)
	buf = appendI64(buf, order, int64(len(fs.TOC)))
	for _, e := range fs.TOC {
		buf = appendI64(buf, order, int64(e.Kind))
		buf = appendI64(buf, order, e.Offset)
		buf = appendI64(buf, order, e.Length)
	}
	return buf
}

func parseFrameSetPayload(data []byte, order binary.ByteOrder) (*FrameSet, error) {
	if len(data) < fsPayloadFixed {
		return nil, fmt.Errorf("%w: frame set payload is %d bytes", ErrCorruptPayload, len(data))
	}
	i64 := func(off int) int64 { return int64(order.Uint64(data[off : off+8])) }

	fs := &FrameSet{
		FirstFrame: i64(0),
		NFrames:    i64(8),
		Next:       i64(16),
		Prev:       i64(24),
		MediumNext: i64(32),
		MediumPrev: i64(40),
		LongNext:   i64(48),
		LongPrev:   i64(56),
		Pos:        NilPos,
	}
	if fs.FirstFrame < 0 || fs.NFrames < 1 {
		return nil, fmt.Errorf("%w: first frame %d, %d frames", ErrCorruptPayload, fs.FirstFrame, fs.NFrames)
	}

	n := i64(64)
	if n < 0 || len(data)-fsPayloadFixed != int(n)*tocEntryLen {
		return nil, fmt.Errorf("%w: %d directory entries in %d bytes", ErrCorruptPayload, n, len(data)-fsPayloadFixed)
	}
	fs.TOC = make([]TOCEntry, n)
	off := fsPayloadFixed
	for i := range fs.TOC {
		fs.TOC[i] = TOCEntry{
			Kind:   block.Kind(i64(off)),
			Offset: i64(off + 8),
			Length: i64(off + 16),
		}
		off += tocEntryLen
	}
	return fs, nil
}

func appendMappingPayload(m *Mapping, order binary.ByteOrder) []byte {
	buf := make([]byte, 0, mapPayloadFixed+len(m.Real)*8)
	buf = appendI64(buf, order, m.FirstParticle)
	buf = appendI64(buf, order, int64(len(m.Real)))
	for _, r := range m.Real {
		buf = appendI64(buf, order, r)
	}
	return buf
}

func parseMappingPayload(data []byte, order binary.ByteOrder) (*Mapping, error) {
	if len(data) < mapPayloadFixed {
		return nil, fmt.Errorf("%w: mapping payload is %d bytes", ErrCorruptPayload, len(data))
	}
	first := int64(order.Uint64(data[0:8]))
	n := int64(order.Uint64(data[8:16]))
	if first < 0 || n < 1 || len(data)-mapPayloadFixed != int(n)*8 {
		return nil, fmt.Errorf("%w: mapping of %d particles in %d bytes", ErrCorruptPayload, n, len(data)-mapPayloadFixed)
	}
	m := &Mapping{FirstParticle: first, Real: make([]int64, n)}
	for i := range m.Real {
		m.Real[i] = int64(order.Uint64(data[mapPayloadFixed+i*8:]))
	}
	return m, nil
}

// buildDataPayload serializes one data block, value encoding included.
// This is the CPU-bound part of a granule write and runs on the worker
// pool; it touches nothing outside the block.
func buildDataPayload(d *DataBlock, opts WriteOptions) ([]byte, error) {
	encoded, err := encodeValues(d, opts)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, dataPayloadFixed+len(encoded))
	buf = append(buf, byte(d.Values.Type), byte(d.Codec))
	buf = appendI64(buf, opts.Order, d.NFrames)
	buf = appendI64(buf, opts.Order, d.ValuesPerFrame)
	buf = appendI64(buf, opts.Order, d.Stride)
	buf = appendI64(buf, opts.Order, d.FirstParticle)
	buf = appendI64(buf, opts.Order, d.NParticles)
	buf = appendU64(buf, opts.Order, math.Float64bits(d.Precision))
	buf = appendI64(buf, opts.Order, int64(len(encoded)))
	buf = append(buf, encoded...)
	return buf, nil
}

func encodeValues(d *DataBlock, opts WriteOptions) ([]byte, error) {
	start := time.Now()

	var encoded []byte
	switch d.Codec {
	case CodecTNG:
		ints, err := quantized(d, opts.Precision)
		if err != nil {
			return nil, err
		}
		sample := d.ValuesPerFrame
		if d.ParticleDependent {
			sample *= d.NParticles
		}
		e, err := codec.Encode(ints, codec.AlgoBest, int(sample))
		if err != nil {
			return nil, err
		}
		encoded = e.Bytes()

	case CodecUncompressed:
		encoded = rawValueBytes(d.Values, opts.Order)

	case CodecSnappy:
		encoded = snappy.Encode(nil, rawValueBytes(d.Values, opts.Order))

	case CodecZstd:
		encoded = zstdEncoder.EncodeAll(rawValueBytes(d.Values, opts.Order), nil)

	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnsupportedCodec, d.Codec)
	}

	if opts.Metrics != nil {
		raw := rawByteSize(d.Values)
		ratio := 1.0
		if raw > 0 {
			ratio = float64(len(encoded)) / float64(raw)
		}
		opts.Metrics.RecordEncode(d.Codec.String(), time.Since(start), ratio)
	}
	return encoded, nil
}

// quantized returns the integer view of the block's values, recording
// the precision used so readers can undo it.
func quantized(d *DataBlock, precision float64) ([]int64, error) {
	switch d.Values.Type {
	case TypeInt:
		d.Precision = 0
		return d.Values.Ints, nil
	case TypeFloat:
		q, err := codec.NewQuantizer(precision)
		if err != nil {
			return nil, err
		}
		d.Precision = precision
		return q.QuantizeFloat32(d.Values.Floats)
	case TypeDouble:
		q, err := codec.NewQuantizer(precision)
		if err != nil {
			return nil, err
		}
		d.Precision = precision
		return q.Quantize(d.Values.Doubles)
	default:
		return nil, fmt.Errorf("%w: %s under the value codec", ErrDataType, d.Values.Type)
	}
}

func scalarSize(t DataType) int {
	switch t {
	case TypeChar:
		return 1
	case TypeFloat:
		return 4
	default:
		return 8
	}
}

func rawByteSize(v *ValueArray) int {
	return v.Len() * scalarSize(v.Type)
}

func rawValueBytes(v *ValueArray, order binary.ByteOrder) []byte {
	switch v.Type {
	case TypeChar:
		return v.Chars
	case TypeInt:
		buf := make([]byte, len(v.Ints)*8)
		for i, x := range v.Ints {
			order.PutUint64(buf[i*8:], uint64(x))
		}
		return buf
	case TypeFloat:
		buf := make([]byte, len(v.Floats)*4)
		for i, x := range v.Floats {
			order.PutUint32(buf[i*4:], math.Float32bits(x))
		}
		return buf
	default:
		buf := make([]byte, len(v.Doubles)*8)
		for i, x := range v.Doubles {
			order.PutUint64(buf[i*8:], math.Float64bits(x))
		}
		return buf
	}
}

func parseRawValues(data []byte, t DataType, order binary.ByteOrder) (*ValueArray, error) {
	size := scalarSize(t)
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %d raw bytes for %s values", ErrCorruptPayload, len(data), t)
	}
	n := len(data) / size
	switch t {
	case TypeChar:
		out := make([]byte, n)
		copy(out, data)
		return NewCharArray(out), nil
	case TypeInt:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(order.Uint64(data[i*8:]))
		}
		return NewIntArray(out), nil
	case TypeFloat:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(data[i*4:]))
		}
		return NewFloatArray(out), nil
	case TypeDouble:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
		return NewDoubleArray(out), nil
	default:
		return nil, fmt.Errorf("%w: datatype id %d", ErrCorruptPayload, t)
	}
}

// parseDataPayload deserializes one data block, decoding its values per
// the recorded codec id.
func parseDataPayload(data []byte, dependency uint8, order binary.ByteOrder, opts ReadOptions) (*DataBlock, error) {
	if len(data) < dataPayloadFixed {
		return nil, fmt.Errorf("%w: data payload is %d bytes", ErrCorruptPayload, len(data))
	}
	d := &DataBlock{
		Codec:             CodecID(data[1]),
		ParticleDependent: dependency&block.DepParticle != 0,
	}
	typ := DataType(data[0])
	i64 := func(off int) int64 { return int64(order.Uint64(data[off : off+8])) }
	d.NFrames = i64(2)
	d.ValuesPerFrame = i64(10)
	d.Stride = i64(18)
	d.FirstParticle = i64(26)
	d.NParticles = i64(34)
	d.Precision = math.Float64frombits(order.Uint64(data[42:50]))
	encodedLen := i64(50)

	if typ > TypeDouble {
		return nil, fmt.Errorf("%w: datatype id %d", ErrCorruptPayload, typ)
	}
	if d.Stride < 1 || d.NFrames < 1 || d.ValuesPerFrame < 1 {
		return nil, fmt.Errorf("%w: stride %d, %d frames, %d values per frame",
			ErrCorruptPayload, d.Stride, d.NFrames, d.ValuesPerFrame)
	}
	if d.ParticleDependent && (d.FirstParticle < 0 || d.NParticles < 1) {
		return nil, fmt.Errorf("%w: particles %d+%d", ErrCorruptPayload, d.FirstParticle, d.NParticles)
	}
	if encodedLen < 0 || len(data)-dataPayloadFixed != int(encodedLen) {
		return nil, fmt.Errorf("%w: %d encoded bytes declared, %d present",
			ErrCorruptPayload, encodedLen, len(data)-dataPayloadFixed)
	}

	values, err := decodeValues(data[dataPayloadFixed:], typ, d, order, opts)
	if err != nil {
		return nil, err
	}
	if int64(values.Len()) != d.expectedValues() {
		return nil, fmt.Errorf("%w: decoded %d values, expected %d",
			ErrCorruptPayload, values.Len(), d.expectedValues())
	}
	d.Values = values
	return d, nil
}

func decodeValues(encoded []byte, typ DataType, d *DataBlock, order binary.ByteOrder, opts ReadOptions) (*ValueArray, error) {
	start := time.Now()

	var (
		values *ValueArray
		err    error
	)
	switch d.Codec {
	case CodecTNG:
		var ints []int64
		ints, err = codec.Decode(encoded)
		if err != nil {
			return nil, err
		}
		values, err = dequantized(ints, typ, d.Precision)

	case CodecUncompressed:
		values, err = parseRawValues(encoded, typ, order)

	case CodecSnappy:
		var raw []byte
		if n, derr := snappy.DecodedLen(encoded); derr != nil || n > int(maxRawPayload) {
			return nil, fmt.Errorf("%w: snappy header", ErrCorruptPayload)
		}
		raw, err = snappy.Decode(nil, encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrCorruptPayload, err)
		}
		values, err = parseRawValues(raw, typ, order)

	case CodecZstd:
		var raw []byte
		raw, err = zstdDecoder.DecodeAll(encoded, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptPayload, err)
		}
		values, err = parseRawValues(raw, typ, order)

	case CodecXTC:
		return nil, fmt.Errorf("%w: XTC streams need the external reference tools", ErrUnsupportedCodec)

	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnsupportedCodec, d.Codec)
	}
	if err != nil {
		return nil, err
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordDecode(d.Codec.String(), time.Since(start))
	}
	return values, nil
}

func dequantized(ints []int64, typ DataType, precision float64) (*ValueArray, error) {
	switch typ {
	case TypeInt:
		return NewIntArray(ints), nil
	case TypeFloat, TypeDouble:
		q, err := codec.NewQuantizer(precision)
		if err != nil {
			return nil, fmt.Errorf("%w: recorded precision %v", ErrCorruptPayload, precision)
		}
		if typ == TypeFloat {
			return NewFloatArray(q.DequantizeFloat32(ints)), nil
		}
		return NewDoubleArray(q.Dequantize(ints)), nil
	default:
		return nil, fmt.Errorf("%w: %s under the value codec", ErrCorruptPayload, typ)
	}
}

// maxRawPayload caps decompressed value bytes, matching the decoder
// memory bound.
const maxRawPayload = int64(1) << 31

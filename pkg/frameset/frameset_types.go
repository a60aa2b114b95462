package frameset

import (
	"encoding/binary"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/metrics"
)

// NilPos marks an absent file position in link fields.
const NilPos int64 = -1

// DataType tags the scalar type of a data block's values. The ids are
// stable on disk.
type DataType uint8

const (
	TypeChar   DataType = 0
	TypeInt    DataType = 1
	TypeFloat  DataType = 2
	TypeDouble DataType = 3
)

// String returns the datatype's label.
func (t DataType) String() string {
	switch t {
	case TypeChar:
		return "char"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	default:
		return "unknown"
	}
}

// CodecID selects how a data block's values are packed. The ids are
// stable on disk.
type CodecID uint8

const (
	// CodecUncompressed stores raw value bytes in the file's byte order.
	CodecUncompressed CodecID = 0
	// CodecXTC is reserved for files produced by external tools; this
	// build recognizes the id but cannot decode it.
	CodecXTC CodecID = 1
	// CodecTNG runs values through the integer value codec, floats via
	// the fixed-point quantizer.
	CodecTNG CodecID = 2
	// CodecSnappy compresses the raw value bytes with snappy.
	CodecSnappy CodecID = 3
	// CodecZstd compresses the raw value bytes with zstd.
	CodecZstd CodecID = 4
)

// String returns the codec's metric label.
func (c CodecID) String() string {
	switch c {
	case CodecUncompressed:
		return "uncompressed"
	case CodecXTC:
		return "xtc"
	case CodecTNG:
		return "tng"
	case CodecSnappy:
		return "snappy"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ValueArray is a typed value sequence; exactly one slice is set. Values
// flow in through the typed constructors and out through the accessors,
// so a datatype tag can never disagree with the data it tags.
type ValueArray struct {
	Type    DataType
	Chars   []byte
	Ints    []int64
	Floats  []float32
	Doubles []float64
}

// NewCharArray wraps raw bytes.
func NewCharArray(v []byte) *ValueArray { return &ValueArray{Type: TypeChar, Chars: v} }

// NewIntArray wraps 64-bit integers.
func NewIntArray(v []int64) *ValueArray { return &ValueArray{Type: TypeInt, Ints: v} }

// NewFloatArray wraps single-precision values.
func NewFloatArray(v []float32) *ValueArray { return &ValueArray{Type: TypeFloat, Floats: v} }

// NewDoubleArray wraps double-precision values.
func NewDoubleArray(v []float64) *ValueArray { return &ValueArray{Type: TypeDouble, Doubles: v} }

// Len returns the number of scalar values.
func (v *ValueArray) Len() int {
	switch v.Type {
	case TypeChar:
		return len(v.Chars)
	case TypeInt:
		return len(v.Ints)
	case TypeFloat:
		return len(v.Floats)
	default:
		return len(v.Doubles)
	}
}

// Mapping translates granule-local particle numbers to real ones. A
// table with FirstParticle F covers local particles F..F+len(Real)-1.
type Mapping struct {
	FirstParticle int64
	Real          []int64
}

// Translate returns the real particle number for a local one, false when
// the table does not cover it.
func (m *Mapping) Translate(local int64) (int64, bool) {
	if local < m.FirstParticle || local >= m.FirstParticle+int64(len(m.Real)) {
		return 0, false
	}
	return m.Real[local-m.FirstParticle], true
}

// DataBlock is one value sequence inside a frame set: per-frame samples
// of box vectors, positions, or any user-defined kind.
type DataBlock struct {
	Kind              block.Kind
	Name              string
	Codec             CodecID
	NFrames           int64
	ValuesPerFrame    int64
	Stride            int64
	ParticleDependent bool
	FirstParticle     int64
	NParticles        int64
	// Precision is the quantizer step used for float types under
	// CodecTNG; recorded on write, recovered on read.
	Precision float64
	Values    *ValueArray
}

// Samples returns the number of stored frame samples, following the
// ceiling rule for frame counts that are not a stride multiple.
func (d *DataBlock) Samples() int64 {
	return (d.NFrames + d.Stride - 1) / d.Stride
}

// expectedValues is Samples x ValuesPerFrame x NParticles.
func (d *DataBlock) expectedValues() int64 {
	n := d.Samples() * d.ValuesPerFrame
	if d.ParticleDependent {
		n *= d.NParticles
	}
	return n
}

// TOCEntry locates one member block inside a granule.
type TOCEntry struct {
	Kind block.Kind
	// Offset is relative to the granule start (the frame set block's
	// own file position).
	Offset int64
	Length int64
}

// FrameSet is the atomic I/O granule: a fixed range of consecutive
// frames, the mapping tables and data blocks covering it, and the link
// positions tying it into the file's granule chain.
type FrameSet struct {
	FirstFrame int64
	NFrames    int64

	// Absolute file offsets of neighboring frame set blocks, NilPos
	// when absent. Medium and long links skip ahead by the configured
	// stride lengths.
	Next, Prev             int64
	MediumNext, MediumPrev int64
	LongNext, LongPrev     int64

	// Pos is the frame set block's own file offset, NilPos until
	// written or read.
	Pos int64

	Mappings []*Mapping
	Blocks   []*DataBlock

	// TOC is the granule's block directory, populated by Write and
	// ReadNext.
	TOC []TOCEntry
}

// WriteOptions configures one granule write.
type WriteOptions struct {
	// Order is the file byte order; nil means big endian.
	Order binary.ByteOrder
	// Hash selects payload digest computation.
	Hash block.HashMode
	// Precision is the quantizer step for float values under CodecTNG;
	// zero means 0.001.
	Precision float64
	// Workers bounds the payload encoding pool; zero or less means one
	// worker per CPU.
	Workers int
	// Logger receives per-block debug logs; nil keeps the write silent.
	Logger logging.Logger
	// Metrics receives block and frame set counters; nil disables them.
	Metrics *metrics.Registry
}

// ReadOptions configures granule reads.
type ReadOptions struct {
	// Order is the file byte order as detected from the first header.
	Order binary.ByteOrder
	// Hash selects payload digest verification.
	Hash block.HashMode
	// Logger receives per-block debug logs; nil keeps the read silent.
	Logger logging.Logger
	// Metrics receives block and frame set counters; nil disables them.
	Metrics *metrics.Registry
}

// DefaultPrecision is the quantizer step applied when a write does not
// pick one.
const DefaultPrecision = 0.001

func (o WriteOptions) normalized() WriteOptions {
	if o.Order == nil {
		o.Order = binary.BigEndian
	}
	if o.Precision <= 0 {
		o.Precision = DefaultPrecision
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

func (o ReadOptions) normalized() ReadOptions {
	if o.Order == nil {
		o.Order = binary.BigEndian
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

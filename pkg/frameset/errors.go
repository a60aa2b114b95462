package frameset

import "errors"

var (
	// ErrConfig reports an invalid frame set or data block shape: a
	// stride or count below one, or an empty value array.
	ErrConfig = errors.New("invalid frame set configuration")

	// ErrValueCount reports a value array whose length does not match
	// samples x values-per-frame (x particles).
	ErrValueCount = errors.New("value count mismatch")

	// ErrDuplicateKind reports a second non-particle data block of a
	// kind the frame set already holds.
	ErrDuplicateKind = errors.New("duplicate block kind")

	// ErrOverlap reports a particle range that overlaps an existing
	// mapping table or same-kind data block.
	ErrOverlap = errors.New("overlapping particle range")

	// ErrUnmapped reports a particle data block outside the ranges the
	// registered mapping tables cover.
	ErrUnmapped = errors.New("particle range not covered by mapping")

	// ErrDataType reports a datatype the declared codec cannot carry.
	ErrDataType = errors.New("datatype not supported by codec")

	// ErrUnsupportedCodec reports a codec id this build cannot decode,
	// the reserved external XTC id included.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrNotFrameSet reports a block where a frame set block was
	// expected; the granule chain cannot be followed past it.
	ErrNotFrameSet = errors.New("not a frame set block")

	// ErrCorruptPayload reports a structural payload that does not
	// parse: short fields, impossible counts, extents past the file.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrBlockNotFound reports a kind absent from the table of contents.
	ErrBlockNotFound = errors.New("block not in table of contents")
)

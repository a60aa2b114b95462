package trajectory

import "errors"

var (
	// ErrConfig reports an invalid container configuration, from a YAML
	// file or from a Config literal.
	ErrConfig = errors.New("invalid container configuration")

	// ErrClosed reports an operation on a closed container.
	ErrClosed = errors.New("container closed")

	// ErrReadOnly reports a write on a container opened for reading.
	ErrReadOnly = errors.New("container is read-only")

	// ErrFrozen reports a structural edit (molecules, names, particle
	// count) after the first frame set has been written.
	ErrFrozen = errors.New("file headers already written")

	// ErrVersion reports a format version this build cannot read.
	ErrVersion = errors.New("unsupported format version")

	// ErrCorruptHeader reports an info, molecules or trajectory-ids
	// payload that does not parse.
	ErrCorruptHeader = errors.New("corrupt header block")

	// ErrMolecule reports a molecule builder misuse: an over-long name,
	// a bond outside the molecule's atoms, a non-positive count.
	ErrMolecule = errors.New("invalid molecule structure")

	// ErrNoFrameSet reports a data request with no frame set active.
	ErrNoFrameSet = errors.New("no active frame set")

	// ErrFrameRange reports a frame outside the stored data, or a new
	// frame set regressing into frames already written.
	ErrFrameRange = errors.New("frame out of range")

	// ErrParticleRange reports particle bounds that select nothing.
	ErrParticleRange = errors.New("particle out of range")

	// ErrNoParticles reports a particle data write with the particle
	// count still unknown (no molecules and no SetParticleCount).
	ErrNoParticles = errors.New("particle count not set")

	// ErrShapeMismatch reports a block whose shape (stride, values per
	// frame, datatype, particle set) changes between the frame sets an
	// interval read spans.
	ErrShapeMismatch = errors.New("block shape differs across frame sets")

	// ErrParticleBlock reports a kind whose dependency does not match
	// the retrieval call: Data on a particle block or the reverse.
	ErrParticleBlock = errors.New("block dependency mismatch")
)

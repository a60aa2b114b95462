package trajectory

import (
	"errors"
	"io"
	"sort"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/frameset"
	"github.com/jbarnoud/tng/pkg/status"
)

// ValueArray is a dense retrieval result: rows of NValuesPerFrame
// values, one row per stored sample, starting at FirstFrame. Exactly
// one value slice is non-nil, matching Type. With Stride above one the
// rows are the samples covering the requested frames, each sample
// standing for the stride frames after it; sample alignment restarts at
// each frame set's first frame.
type ValueArray struct {
	Type            frameset.DataType
	FirstFrame      int64
	NFrames         int64
	NValuesPerFrame int64
	Stride          int64

	Chars   []byte
	Ints    []int64
	Floats  []float32
	Doubles []float64
}

// Rows returns the number of value rows in the array.
func (v *ValueArray) Rows() int64 {
	if v.NValuesPerFrame < 1 {
		return 0
	}
	return int64(v.view().Len()) / v.NValuesPerFrame
}

// view adapts the array to the frame set value carrier, sharing storage.
func (v *ValueArray) view() *frameset.ValueArray {
	return &frameset.ValueArray{
		Type:    v.Type,
		Chars:   v.Chars,
		Ints:    v.Ints,
		Floats:  v.Floats,
		Doubles: v.Doubles,
	}
}

// appendElems appends source elements [lo, hi) to the matching value
// slice.
func (v *ValueArray) appendElems(src *frameset.ValueArray, lo, hi int64) {
	switch v.Type {
	case frameset.TypeChar:
		v.Chars = append(v.Chars, src.Chars[lo:hi]...)
	case frameset.TypeInt:
		v.Ints = append(v.Ints, src.Ints[lo:hi]...)
	case frameset.TypeFloat:
		v.Floats = append(v.Floats, src.Floats[lo:hi]...)
	default:
		v.Doubles = append(v.Doubles, src.Doubles[lo:hi]...)
	}
}

func arrayLike(d *frameset.DataBlock, firstFrame int64) *ValueArray {
	return &ValueArray{
		Type:            d.Values.Type,
		FirstFrame:      firstFrame,
		NFrames:         d.NFrames,
		NValuesPerFrame: d.ValuesPerFrame,
		Stride:          d.Stride,
	}
}

// ParticleArray is a dense particle retrieval result: per sample, one
// row of NValuesPerFrame values for each particle in Particles, which
// lists real particle numbers after mapping translation.
type ParticleArray struct {
	ValueArray
	NParticles int64
	Particles  []int64
}

// loadOne fetches the single data block of a kind from the active frame
// set: from memory when the set was built in this process, from disk
// through the table of contents otherwise. A digest mismatch rides
// along with the block.
func (c *Container) loadOne(fs *frameset.FrameSet, kind block.Kind) (*frameset.DataBlock, error) {
	for _, d := range fs.Blocks {
		if d.Kind == kind && d.Values != nil {
			return d, nil
		}
	}
	if fs.Pos == frameset.NilPos {
		return nil, status.Failuref("trajectory.data", frameset.ErrBlockNotFound, "%s", kind)
	}
	return frameset.LoadBlock(c.reader, fs, kind, c.readOpts())
}

// loadMany fetches every data block of a kind, one per particle range
// when parallel writers split it. A digest mismatch rides along with
// the blocks.
func (c *Container) loadMany(fs *frameset.FrameSet, kind block.Kind) ([]*frameset.DataBlock, error) {
	var segs []*frameset.DataBlock
	for _, d := range fs.Blocks {
		if d.Kind == kind && d.Values != nil {
			segs = append(segs, d)
		}
	}
	var digestErr error
	if len(segs) == 0 {
		if fs.Pos == frameset.NilPos {
			return nil, status.Failuref("trajectory.data", frameset.ErrBlockNotFound, "%s", kind)
		}
		loaded, err := frameset.LoadAll(c.reader, fs, kind, c.readOpts())
		if loaded == nil {
			return nil, err
		}
		segs = loaded
		digestErr = err
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].FirstParticle < segs[j].FirstParticle })
	return segs, digestErr
}

// Data returns the active frame set's values of a non-particle kind as
// a dense array. A digest mismatch on the stored block is Recoverable
// and the data is still returned.
func (c *Container) Data(kind block.Kind) (*ValueArray, error) {
	const op = "trajectory.data"
	if c.closed {
		return nil, status.Failuref(op, ErrClosed, "container closed")
	}
	if c.cur == nil {
		return nil, status.Failuref(op, ErrNoFrameSet, "read or start a frame set first")
	}
	d, err := c.loadOne(c.cur, kind)
	if d == nil {
		return nil, err
	}
	if d.ParticleDependent {
		return nil, status.Failuref(op, ErrParticleBlock, "%s is particle data, use ParticleData", kind)
	}
	out := arrayLike(d, c.cur.FirstFrame)
	out.appendElems(d.Values, 0, int64(d.Values.Len()))
	return out, err
}

// ParticleData returns the active frame set's values of a particle kind
// as a dense array: samples by particles by values, segments from
// parallel writers stitched in particle order, the particle dimension
// translated to real numbers through the mapping tables. A digest
// mismatch on a stored segment is Recoverable and the data is still
// returned.
func (c *Container) ParticleData(kind block.Kind) (*ParticleArray, error) {
	const op = "trajectory.particle_data"
	if c.closed {
		return nil, status.Failuref(op, ErrClosed, "container closed")
	}
	if c.cur == nil {
		return nil, status.Failuref(op, ErrNoFrameSet, "read or start a frame set first")
	}
	segs, digestErr := c.loadMany(c.cur, kind)
	if segs == nil {
		return nil, digestErr
	}
	out, err := stitchParticle(c.cur, segs)
	if err != nil {
		return nil, err
	}
	return out, digestErr
}

// stitchParticle interleaves same-kind segments into one dense array:
// per sample, each segment's rows in ascending particle order.
func stitchParticle(fs *frameset.FrameSet, segs []*frameset.DataBlock) (*ParticleArray, error) {
	const op = "trajectory.particle_data"

	base := segs[0]
	if !base.ParticleDependent {
		return nil, status.Failuref(op, ErrParticleBlock, "%s is not particle data, use Data", base.Kind)
	}
	var nRows int64
	for _, d := range segs {
		if !d.ParticleDependent {
			return nil, status.Failuref(op, ErrParticleBlock, "%s is not particle data, use Data", d.Kind)
		}
		if d.NFrames != base.NFrames || d.ValuesPerFrame != base.ValuesPerFrame ||
			d.Stride != base.Stride || d.Values.Type != base.Values.Type {
			return nil, status.Failuref(op, ErrShapeMismatch,
				"%s: segments at particle %d and %d disagree on shape", d.Kind, base.FirstParticle, d.FirstParticle)
		}
		nRows += d.NParticles
	}

	particles := make([]int64, 0, nRows)
	for _, d := range segs {
		for i := int64(0); i < d.NParticles; i++ {
			real, ok := fs.Translate(d.FirstParticle + i)
			if !ok {
				return nil, status.Failuref(op, ErrParticleRange,
					"%s: local particle %d has no mapping", d.Kind, d.FirstParticle+i)
			}
			particles = append(particles, real)
		}
	}

	out := &ParticleArray{
		ValueArray: *arrayLike(base, fs.FirstFrame),
		NParticles: nRows,
		Particles:  particles,
	}
	for s := int64(0); s < base.Samples(); s++ {
		for _, d := range segs {
			rowLen := d.NParticles * d.ValuesPerFrame
			out.appendElems(d.Values, s*rowLen, (s+1)*rowLen)
		}
	}
	return out, nil
}

// DataInterval returns the values of a non-particle kind over frames
// first through last, both inclusive, walking the granule chain forward
// when the interval spans several frame sets. The active set ends on
// the interval's last granule. Frames not stored anywhere in the
// interval are a Recoverable range error; a shape change between
// granules is a Recoverable shape error.
func (c *Container) DataInterval(kind block.Kind, first, last int64) (*ValueArray, error) {
	const op = "trajectory.data_interval"
	if c.closed {
		return nil, status.Failuref(op, ErrClosed, "container closed")
	}
	if first < 0 || last < first {
		return nil, status.Failuref(op, ErrFrameRange, "frames %d-%d", first, last)
	}
	digestErr := c.FrameSetOfFrame(first)
	if digestErr != nil && !isDigestMismatch(digestErr) {
		return nil, digestErr
	}

	var out *ValueArray
	for {
		g := c.cur
		d, err := c.loadOne(g, kind)
		if d == nil {
			return nil, err
		}
		if err != nil {
			digestErr = err
		}
		if d.ParticleDependent {
			return nil, status.Failuref(op, ErrParticleBlock, "%s is particle data, use ParticleDataInterval", kind)
		}

		cf := max(first, g.FirstFrame)
		cl := min(last, g.FirstFrame+g.NFrames-1)
		k0 := (cf - g.FirstFrame) / d.Stride
		k1 := (cl - g.FirstFrame) / d.Stride
		if out == nil {
			out = arrayLike(d, g.FirstFrame+k0*d.Stride)
		} else if d.ValuesPerFrame != out.NValuesPerFrame || d.Stride != out.Stride || d.Values.Type != out.Type {
			return nil, status.Failuref(op, ErrShapeMismatch,
				"%s changes shape at frame %d", kind, g.FirstFrame)
		}
		out.appendElems(d.Values, k0*d.ValuesPerFrame, (k1+1)*d.ValuesPerFrame)

		if g.FirstFrame+g.NFrames > last {
			out.NFrames = last - out.FirstFrame + 1
			return out, digestErr
		}
		prevEnd := g.FirstFrame + g.NFrames
		if err := c.stepInterval(op, prevEnd, last); err != nil {
			if isDigestMismatch(err) {
				digestErr = err
			} else {
				return nil, err
			}
		}
	}
}

// stepInterval advances to the next granule of an interval walk,
// turning a chain end or a frame gap into a range error.
func (c *Container) stepInterval(op string, wantFrame, last int64) error {
	err := c.ReadNextFrameSet()
	if err == io.EOF {
		return status.Failuref(op, ErrFrameRange,
			"frames %d-%d are not stored", wantFrame, last)
	}
	if err != nil && !isDigestMismatch(err) {
		return err
	}
	if c.cur.FirstFrame != wantFrame {
		return status.Failuref(op, ErrFrameRange,
			"frames %d-%d are not stored", wantFrame, min(last, c.cur.FirstFrame-1))
	}
	return err
}

// ParticleDataInterval returns the values of a particle kind over
// frames firstFrame through lastFrame, restricted to real particle
// numbers firstParticle through lastParticle, all bounds inclusive.
// Granules are walked forward like DataInterval; every granule must
// carry the same selected particles in the same order.
func (c *Container) ParticleDataInterval(kind block.Kind, firstFrame, lastFrame, firstParticle, lastParticle int64) (*ParticleArray, error) {
	const op = "trajectory.particle_data_interval"
	if c.closed {
		return nil, status.Failuref(op, ErrClosed, "container closed")
	}
	if firstFrame < 0 || lastFrame < firstFrame {
		return nil, status.Failuref(op, ErrFrameRange, "frames %d-%d", firstFrame, lastFrame)
	}
	if firstParticle < 0 || lastParticle < firstParticle {
		return nil, status.Failuref(op, ErrParticleRange, "particles %d-%d", firstParticle, lastParticle)
	}
	digestErr := c.FrameSetOfFrame(firstFrame)
	if digestErr != nil && !isDigestMismatch(digestErr) {
		return nil, digestErr
	}

	var out *ParticleArray
	var keep []int64
	for {
		g := c.cur
		segs, err := c.loadMany(g, kind)
		if segs == nil {
			return nil, err
		}
		if err != nil {
			digestErr = err
		}
		full, err := stitchParticle(g, segs)
		if err != nil {
			return nil, err
		}

		if out == nil {
			keep = selectParticles(full.Particles, firstParticle, lastParticle)
			if len(keep) == 0 {
				return nil, status.Failuref(op, ErrParticleRange,
					"no stored particle in %d-%d", firstParticle, lastParticle)
			}
			out = &ParticleArray{
				ValueArray: ValueArray{
					Type:            full.Type,
					NValuesPerFrame: full.NValuesPerFrame,
					Stride:          full.Stride,
				},
				NParticles: int64(len(keep)),
			}
			out.Particles = make([]int64, len(keep))
			for i, r := range keep {
				out.Particles[i] = full.Particles[r]
			}
		} else {
			if full.NValuesPerFrame != out.NValuesPerFrame || full.Stride != out.Stride || full.Type != out.Type {
				return nil, status.Failuref(op, ErrShapeMismatch,
					"%s changes shape at frame %d", kind, g.FirstFrame)
			}
			next := selectParticles(full.Particles, firstParticle, lastParticle)
			if !sameSelection(keep, next, full.Particles, out.Particles) {
				return nil, status.Failuref(op, ErrShapeMismatch,
					"%s changes its particle set at frame %d", kind, g.FirstFrame)
			}
			keep = next
		}

		cf := max(firstFrame, g.FirstFrame)
		cl := min(lastFrame, g.FirstFrame+g.NFrames-1)
		k0 := (cf - g.FirstFrame) / full.Stride
		k1 := (cl - g.FirstFrame) / full.Stride
		if out.Rows() == 0 {
			out.FirstFrame = g.FirstFrame + k0*full.Stride
		}
		src := full.view()
		for s := k0; s <= k1; s++ {
			for _, r := range keep {
				lo := (s*full.NParticles + r) * full.NValuesPerFrame
				out.appendElems(src, lo, lo+full.NValuesPerFrame)
			}
		}

		if g.FirstFrame+g.NFrames > lastFrame {
			out.NFrames = lastFrame - out.FirstFrame + 1
			return out, digestErr
		}
		prevEnd := g.FirstFrame + g.NFrames
		if err := c.stepInterval(op, prevEnd, lastFrame); err != nil {
			if isDigestMismatch(err) {
				digestErr = err
			} else {
				return nil, err
			}
		}
	}
}

// selectParticles returns the row indices whose real particle number
// falls in [first, last].
func selectParticles(particles []int64, first, last int64) []int64 {
	var keep []int64
	for i, real := range particles {
		if real >= first && real <= last {
			keep = append(keep, int64(i))
		}
	}
	return keep
}

// sameSelection reports whether a later granule selects the same real
// particles in the same order as the first one.
func sameSelection(prev, next []int64, particles, want []int64) bool {
	if len(prev) != len(next) {
		return false
	}
	for i, r := range next {
		if particles[r] != want[i] {
			return false
		}
	}
	return true
}

func isDigestMismatch(err error) bool {
	return err != nil && status.IsRecoverable(err) && errors.Is(err, block.ErrDigestMismatch)
}

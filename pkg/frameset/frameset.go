// Package frameset builds, serializes and reads frame sets: the atomic
// I/O granule grouping a fixed range of consecutive simulation frames
// with the particle mappings and data blocks covering it. A granule on
// disk is one frame set block carrying links and the table of contents,
// followed by its member blocks.
package frameset

import (
	"sort"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/status"
)

// New creates an empty frame set covering frames FirstFrame to
// FirstFrame+NFrames-1. All links start at NilPos.
func New(firstFrame, nFrames int64) (*FrameSet, error) {
	if firstFrame < 0 || nFrames < 1 {
		return nil, status.Failuref("frameset.new", ErrConfig,
			"first frame %d, %d frames", firstFrame, nFrames)
	}
	return &FrameSet{
		FirstFrame: firstFrame,
		NFrames:    nFrames,
		Next:       NilPos,
		Prev:       NilPos,
		MediumNext: NilPos,
		MediumPrev: NilPos,
		LongNext:   NilPos,
		LongPrev:   NilPos,
		Pos:        NilPos,
	}, nil
}

// AddMapping registers a local-to-real particle translation table. The
// local range [first, first+len(real)) must not overlap an existing
// table. The real slice is copied.
func (fs *FrameSet) AddMapping(first int64, real []int64) error {
	const op = "frameset.add_mapping"
	if first < 0 || len(real) == 0 {
		return status.Failuref(op, ErrConfig, "first particle %d, %d entries", first, len(real))
	}
	last := first + int64(len(real)) - 1
	for _, m := range fs.Mappings {
		mLast := m.FirstParticle + int64(len(m.Real)) - 1
		if first <= mLast && m.FirstParticle <= last {
			return status.Failuref(op, ErrOverlap,
				"local particles %d-%d collide with table at %d-%d", first, last, m.FirstParticle, mLast)
		}
	}
	cp := make([]int64, len(real))
	copy(cp, real)
	fs.Mappings = append(fs.Mappings, &Mapping{FirstParticle: first, Real: cp})
	return nil
}

// Translate maps a granule-local particle number to a real one. Without
// mapping tables the numbering is the identity.
func (fs *FrameSet) Translate(local int64) (int64, bool) {
	if len(fs.Mappings) == 0 {
		return local, true
	}
	for _, m := range fs.Mappings {
		if real, ok := m.Translate(local); ok {
			return real, true
		}
	}
	return 0, false
}

// AddDataBlock appends a non-particle data block: one value group per
// stored frame sample. Validation is eager; a rejected block leaves the
// frame set unchanged.
func (fs *FrameSet) AddDataBlock(kind block.Kind, codec CodecID, nFrames, valuesPerFrame, stride int64, values *ValueArray) error {
	d := &DataBlock{
		Kind:           kind,
		Name:           kind.DefaultName(),
		Codec:          codec,
		NFrames:        nFrames,
		ValuesPerFrame: valuesPerFrame,
		Stride:         stride,
		Values:         values,
	}
	if err := fs.validate(d); err != nil {
		return err
	}
	fs.Blocks = append(fs.Blocks, d)
	return nil
}

// AddParticleDataBlock appends a particle-dependent data block scoped to
// local particles [firstParticle, firstParticle+nParticles). Several
// blocks of one kind may coexist when their particle ranges are
// disjoint, which is how parallel writers share a frame set.
func (fs *FrameSet) AddParticleDataBlock(kind block.Kind, codec CodecID, nFrames, valuesPerFrame, stride, firstParticle, nParticles int64, values *ValueArray) error {
	d := &DataBlock{
		Kind:              kind,
		Name:              kind.DefaultName(),
		Codec:             codec,
		NFrames:           nFrames,
		ValuesPerFrame:    valuesPerFrame,
		Stride:            stride,
		ParticleDependent: true,
		FirstParticle:     firstParticle,
		NParticles:        nParticles,
		Values:            values,
	}
	if err := fs.validate(d); err != nil {
		return err
	}
	fs.Blocks = append(fs.Blocks, d)
	return nil
}

func (fs *FrameSet) validate(d *DataBlock) error {
	const op = "frameset.add_data_block"

	if d.Stride < 1 || d.NFrames < 1 || d.ValuesPerFrame < 1 {
		return status.Failuref(op, ErrConfig,
			"%s: stride %d, %d frames, %d values per frame", d.Kind, d.Stride, d.NFrames, d.ValuesPerFrame)
	}
	if d.NFrames > fs.NFrames {
		return status.Failuref(op, ErrConfig,
			"%s: %d frames exceed the frame set's %d", d.Kind, d.NFrames, fs.NFrames)
	}
	if d.Values == nil || d.Values.Len() == 0 {
		return status.Failuref(op, ErrConfig, "%s: no values", d.Kind)
	}
	if d.Codec == CodecXTC {
		return status.Failuref(op, ErrUnsupportedCodec, "%s: the XTC id is reserved for external tools", d.Kind)
	}
	if d.Codec > CodecZstd {
		return status.Failuref(op, ErrUnsupportedCodec, "%s: codec id %d", d.Kind, d.Codec)
	}
	if d.Codec == CodecTNG && d.Values.Type == TypeChar {
		return status.Failuref(op, ErrDataType, "%s: the value codec has no char path", d.Kind)
	}

	if d.ParticleDependent {
		if d.FirstParticle < 0 || d.NParticles < 1 {
			return status.Failuref(op, ErrConfig,
				"%s: particles %d+%d", d.Kind, d.FirstParticle, d.NParticles)
		}
		if err := fs.checkParticleRange(d); err != nil {
			return err
		}
	}

	if want := d.expectedValues(); int64(d.Values.Len()) != want {
		return status.Failuref(op, ErrValueCount,
			"%s: %d values, want %d (%d samples x %d per frame%s)",
			d.Kind, d.Values.Len(), want, d.Samples(), d.ValuesPerFrame,
			particleSuffix(d))
	}

	for _, existing := range fs.Blocks {
		if existing.Kind != d.Kind {
			continue
		}
		if !d.ParticleDependent || !existing.ParticleDependent {
			return status.Failuref(op, ErrDuplicateKind, "%s already present", d.Kind)
		}
		if rangesOverlap(d.FirstParticle, d.NParticles, existing.FirstParticle, existing.NParticles) {
			return status.Failuref(op, ErrOverlap,
				"%s: particles %d+%d collide with existing %d+%d",
				d.Kind, d.FirstParticle, d.NParticles, existing.FirstParticle, existing.NParticles)
		}
	}
	return nil
}

// checkParticleRange requires the block's local range to be covered by
// the registered mapping tables, when any exist.
func (fs *FrameSet) checkParticleRange(d *DataBlock) error {
	if len(fs.Mappings) == 0 {
		return nil
	}
	type span struct{ first, last int64 }
	spans := make([]span, 0, len(fs.Mappings))
	for _, m := range fs.Mappings {
		spans = append(spans, span{m.FirstParticle, m.FirstParticle + int64(len(m.Real)) - 1})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].first < spans[j].first })

	need := d.FirstParticle
	last := d.FirstParticle + d.NParticles - 1
	for _, s := range spans {
		if s.first > need {
			break
		}
		if s.last >= need {
			need = s.last + 1
		}
		if need > last {
			return nil
		}
	}
	return status.Failuref("frameset.add_data_block", ErrUnmapped,
		"%s: local particle %d has no mapping", d.Kind, need)
}

func rangesOverlap(aFirst, aN, bFirst, bN int64) bool {
	return aFirst < bFirst+bN && bFirst < aFirst+aN
}

func particleSuffix(d *DataBlock) string {
	if !d.ParticleDependent {
		return ""
	}
	return " x particles"
}

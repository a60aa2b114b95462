package frameset

import (
	"errors"
	"io"
	"time"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/status"
)

// ReadNext reads the granule starting at the reader's current offset:
// the frame set block is parsed (links + table of contents), mapping
// blocks are read eagerly, data block payloads stay on disk until
// LoadBlock asks for them. The cursor is left at the granule's end so
// repeated calls walk the file; io.EOF reports a clean end of data.
//
// A digest mismatch on a member block is Recoverable: the frame set is
// still returned alongside the error and the caller decides.
func ReadNext(rs io.ReadSeeker, opts ReadOptions) (*FrameSet, error) {
	const op = "frameset.read_next"
	opts = opts.normalized()
	start := time.Now()

	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}

	blk, err := block.Read(rs, opts.Order, opts.Hash)
	if err == io.EOF {
		return nil, io.EOF
	}
	var digestErr error
	if err != nil {
		if !errors.Is(err, block.ErrDigestMismatch) {
			return nil, err
		}
		digestErr = err
		if opts.Metrics != nil {
			opts.Metrics.RecordDigestMismatch(blk.Kind.String())
		}
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordBlockRead(blk.Kind.String(), blk.Length)
	}
	if blk.Kind != block.KindFrameSet {
		return nil, status.Criticalf(op, ErrNotFrameSet, "block at %d is %s", pos, blk.Kind)
	}

	fs, err := parseFrameSetPayload(blk.Payload, opts.Order)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}
	fs.Pos = pos

	fileEnd, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}
	granuleEnd := pos + blk.Length
	for _, e := range fs.TOC {
		if e.Offset < blk.Length || e.Length < 1 || pos+e.Offset+e.Length > fileEnd {
			return nil, status.Criticalf(op, ErrCorruptPayload,
				"directory entry %s at offset %d length %d exceeds the file", e.Kind, e.Offset, e.Length)
		}
		if end := pos + e.Offset + e.Length; end > granuleEnd {
			granuleEnd = end
		}
	}

	for _, e := range fs.TOC {
		if e.Kind != block.KindParticleMapping {
			continue
		}
		mb, err := block.ReadAt(rs, pos+e.Offset, opts.Order, opts.Hash)
		if err != nil {
			if !errors.Is(err, block.ErrDigestMismatch) {
				return nil, err
			}
			digestErr = err
			if opts.Metrics != nil {
				opts.Metrics.RecordDigestMismatch(mb.Kind.String())
			}
		}
		if opts.Metrics != nil {
			opts.Metrics.RecordBlockRead(mb.Kind.String(), mb.Length)
		}
		m, err := parseMappingPayload(mb.Payload, opts.Order)
		if err != nil {
			return fs, status.Wrap(status.Recoverable, op, nil, err)
		}
		fs.Mappings = append(fs.Mappings, m)
	}

	if _, err := rs.Seek(granuleEnd, io.SeekStart); err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordFrameSetRead(time.Since(start))
	}
	opts.Logger.Debug("frame set read",
		logging.FirstFrame(fs.FirstFrame), logging.Frames(fs.NFrames),
		logging.FilePos(pos), logging.Count(len(fs.TOC)))
	return fs, digestErr
}

// ReadAt reads the granule at an absolute file position, used for
// backward and stride walks along the link chain.
func ReadAt(rs io.ReadSeeker, pos int64, opts ReadOptions) (*FrameSet, error) {
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, status.Wrap(status.Critical, "frameset.read_at", nil, err)
	}
	return ReadNext(rs, opts)
}

// LoadBlock reads and decodes the first data block of the given kind
// through the table of contents. For kinds split over several particle
// ranges use LoadAll.
func LoadBlock(rs io.ReadSeeker, fs *FrameSet, kind block.Kind, opts ReadOptions) (*DataBlock, error) {
	for _, e := range fs.TOC {
		if e.Kind != kind || e.Kind == block.KindParticleMapping {
			continue
		}
		return loadEntry(rs, fs, e, opts)
	}
	return nil, status.Failuref("frameset.load_block", ErrBlockNotFound, "%s", kind)
}

// LoadAll reads and decodes every data block of the given kind, in file
// order. Parallel writers leave one block per particle range. A digest
// mismatch on any block rides along with the full set of blocks.
func LoadAll(rs io.ReadSeeker, fs *FrameSet, kind block.Kind, opts ReadOptions) ([]*DataBlock, error) {
	var out []*DataBlock
	var digestErr error
	for _, e := range fs.TOC {
		if e.Kind != kind || e.Kind == block.KindParticleMapping {
			continue
		}
		d, err := loadEntry(rs, fs, e, opts)
		if d == nil {
			return nil, err
		}
		if err != nil && digestErr == nil {
			digestErr = err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, status.Failuref("frameset.load_all", ErrBlockNotFound, "%s", kind)
	}
	return out, digestErr
}

func loadEntry(rs io.ReadSeeker, fs *FrameSet, e TOCEntry, opts ReadOptions) (*DataBlock, error) {
	const op = "frameset.load_block"
	opts = opts.normalized()

	blk, err := block.ReadAt(rs, fs.Pos+e.Offset, opts.Order, opts.Hash)
	var digestErr error
	if err != nil {
		if !errors.Is(err, block.ErrDigestMismatch) {
			return nil, err
		}
		digestErr = err
		if opts.Metrics != nil {
			opts.Metrics.RecordDigestMismatch(blk.Kind.String())
		}
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordBlockRead(blk.Kind.String(), blk.Length)
	}

	d, err := parseDataPayload(blk.Payload, blk.Dependency, opts.Order, opts)
	if err != nil {
		return nil, status.Wrap(status.Recoverable, op, nil, err)
	}
	d.Kind = blk.Kind
	d.Name = blk.Name
	opts.Logger.Debug("data block loaded",
		logging.BlockKind(int64(d.Kind)), logging.Codec(d.Codec.String()),
		logging.Frames(d.NFrames), logging.Bytes(blk.Length))
	return d, digestErr
}

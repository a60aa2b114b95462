package trajectory

import (
	"errors"
	"io"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/frameset"
	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/status"
)

// NewFrameSet starts a new active frame set covering frames firstFrame
// to firstFrame+nFrames-1. nFrames below one takes the configured
// frames-per-set default. The first frame must not regress into frames
// already written; gaps ahead are allowed. An unwritten active set is
// abandoned.
func (c *Container) NewFrameSet(firstFrame, nFrames int64) (*frameset.FrameSet, error) {
	const op = "trajectory.new_frame_set"
	if c.closed {
		return nil, status.Failuref(op, ErrClosed, "container closed")
	}
	if !c.writable {
		return nil, status.Failuref(op, ErrReadOnly, "opened for reading")
	}
	if nFrames < 1 {
		nFrames = c.cfg.FramesPerFrameSet
	}
	if firstFrame < c.nextFrame {
		return nil, status.Failuref(op, ErrFrameRange,
			"first frame %d regresses into frames already written (next free frame is %d)",
			firstFrame, c.nextFrame)
	}

	fs, err := frameset.New(firstFrame, nFrames)
	if err != nil {
		return nil, err
	}
	if c.cur != nil && c.curDirty {
		c.logger.Warn("abandoning unwritten frame set",
			logging.FirstFrame(c.cur.FirstFrame), logging.Frames(c.cur.NFrames))
		if c.metrics != nil {
			c.metrics.FrameSetClosed()
		}
	}
	c.cur = fs
	c.curDirty = true
	if c.metrics != nil {
		c.metrics.FrameSetOpened()
	}
	return fs, nil
}

// CurrentFrameSet returns the active frame set: the one being filled,
// or the one most recently read. Nil when neither exists.
func (c *Container) CurrentFrameSet() *frameset.FrameSet {
	return c.cur
}

// WriteFrameSet appends the active frame set to the file and threads it
// into the granule chain: the previous granule's next link is patched,
// and every configured stride count the new granule becomes a medium or
// long chain anchor and the previous anchor is patched to point at it.
// The first write freezes the header region.
func (c *Container) WriteFrameSet() error {
	const op = "trajectory.write_frame_set"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if !c.writable {
		return status.Failuref(op, ErrReadOnly, "opened for reading")
	}
	if c.cur == nil {
		return status.Failuref(op, ErrNoFrameSet, "nothing to write")
	}
	if !c.curDirty {
		return status.Failuref(op, ErrNoFrameSet, "active frame set already written")
	}
	if !c.frozen {
		if err := c.freeze(); err != nil {
			return err
		}
	}

	idx := c.info.NFrameSets
	fs := c.cur
	fs.Prev = c.info.LastSetPos
	fs.MediumPrev = c.lastMediumPos
	fs.LongPrev = c.lastLongPos

	if _, err := c.file.Seek(0, io.SeekEnd); err != nil {
		return status.Wrap(status.Critical, op, nil, err)
	}
	if err := fs.Write(c.file, c.writeOpts()); err != nil {
		return err
	}
	end, err := c.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return status.Wrap(status.Critical, op, nil, err)
	}
	c.readPos = end

	hash := c.cfg.hashMode()
	if fs.Prev != frameset.NilPos {
		err := frameset.PatchLinks(c.file, fs.Prev,
			frameset.Links{Next: fs.Pos}, frameset.LinkNext, c.order, hash)
		if err != nil {
			return err
		}
	}
	if idx%c.cfg.MediumStride == 0 {
		if c.lastMediumPos != frameset.NilPos {
			err := frameset.PatchLinks(c.file, c.lastMediumPos,
				frameset.Links{MediumNext: fs.Pos}, frameset.LinkMediumNext, c.order, hash)
			if err != nil {
				return err
			}
		}
		c.lastMediumPos = fs.Pos
	}
	if idx%c.cfg.LongStride == 0 {
		if c.lastLongPos != frameset.NilPos {
			err := frameset.PatchLinks(c.file, c.lastLongPos,
				frameset.Links{LongNext: fs.Pos}, frameset.LinkLongNext, c.order, hash)
			if err != nil {
				return err
			}
		}
		c.lastLongPos = fs.Pos
	}

	if c.info.FirstSetPos == frameset.NilPos {
		c.info.FirstSetPos = fs.Pos
	}
	c.info.LastSetPos = fs.Pos
	c.info.NFrameSets++
	c.info.TotalFrames += fs.NFrames
	if err := c.patchInfo(); err != nil {
		return err
	}

	c.nextFrame = fs.FirstFrame + fs.NFrames
	c.curDirty = false
	if c.metrics != nil {
		c.metrics.FrameSetClosed()
	}
	return nil
}

// readGranule reads the granule at pos without committing it as the
// active set. A digest mismatch still yields the frame set; the error
// rides along for the caller to weigh.
func (c *Container) readGranule(pos int64) (*frameset.FrameSet, error) {
	fs, err := frameset.ReadAt(c.reader, pos, c.readOpts())
	if err != nil && !errors.Is(err, block.ErrDigestMismatch) {
		return nil, err
	}
	return fs, err
}

// commit makes fs the active frame set and records where its granule
// ends, so sequential reads continue past it.
func (c *Container) commit(fs *frameset.FrameSet) error {
	end, err := c.reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return status.Wrap(status.Critical, "trajectory.read_frame_set", nil, err)
	}
	c.cur = fs
	c.curDirty = false
	c.readPos = end
	return nil
}

// ReadNextFrameSet reads the granule after the active one, following
// its next link, and makes it active. With no active set it starts at
// the file's first granule. A missing next link falls back to the
// sequential position, so a file whose links were never patched still
// walks. io.EOF reports a clean end of data; a digest mismatch is
// Recoverable and the granule is still made active.
func (c *Container) ReadNextFrameSet() error {
	const op = "trajectory.read_next_frame_set"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}

	var pos int64
	switch {
	case c.cur == nil:
		if c.info.FirstSetPos == frameset.NilPos {
			return io.EOF
		}
		pos = c.info.FirstSetPos
	case c.cur.Next != frameset.NilPos:
		pos = c.cur.Next
	default:
		pos = c.readPos
	}

	fs, err := c.readGranule(pos)
	if err == io.EOF {
		return io.EOF
	}
	if fs == nil {
		return err
	}
	if cerr := c.commit(fs); cerr != nil {
		return cerr
	}
	return err
}

// ReadPrevFrameSet reads the granule before the active one, following
// its prev link. io.EOF reports the start of the chain.
func (c *Container) ReadPrevFrameSet() error {
	const op = "trajectory.read_prev_frame_set"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if c.cur == nil {
		return status.Failuref(op, ErrNoFrameSet, "no active frame set to step back from")
	}
	if c.cur.Prev == frameset.NilPos {
		return io.EOF
	}
	fs, err := c.readGranule(c.cur.Prev)
	if fs == nil {
		return err
	}
	if cerr := c.commit(fs); cerr != nil {
		return cerr
	}
	return err
}

// ReadFrameSetAt reads the granule at an absolute file position and
// makes it active.
func (c *Container) ReadFrameSetAt(pos int64) error {
	const op = "trajectory.read_frame_set_at"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if pos < c.headerEnd {
		return status.Failuref(op, ErrFrameRange,
			"position %d is inside the header region (granules start at %d)", pos, c.headerEnd)
	}
	fs, err := c.readGranule(pos)
	if fs == nil {
		return err
	}
	if cerr := c.commit(fs); cerr != nil {
		return cerr
	}
	return err
}

// FrameSetOfFrame positions the container on the granule holding the
// given frame. The walk starts from the active set when it lies at or
// before the frame, otherwise from the file's first granule, and jumps
// along the long, medium and unit chains in that order, taking the
// longest jump that does not overshoot. A frame before the first
// granule, past the last, or in a gap between granules is a Recoverable
// range error.
func (c *Container) FrameSetOfFrame(frame int64) error {
	const op = "trajectory.frame_set_of_frame"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if frame < 0 {
		return status.Failuref(op, ErrFrameRange, "frame %d", frame)
	}

	var g *frameset.FrameSet
	var digestErr error
	if c.cur != nil && c.cur.FirstFrame <= frame {
		g = c.cur
	} else {
		if c.info.FirstSetPos == frameset.NilPos {
			return status.Failuref(op, ErrFrameRange, "the file holds no frame sets")
		}
		fs, err := c.readGranule(c.info.FirstSetPos)
		if fs == nil {
			return err
		}
		g, digestErr = fs, err
	}

	for {
		if frame < g.FirstFrame {
			return status.Failuref(op, ErrFrameRange,
				"frame %d falls before the granule at frame %d", frame, g.FirstFrame)
		}
		if frame < g.FirstFrame+g.NFrames {
			if g != c.cur {
				if err := c.commit(g); err != nil {
					return err
				}
			}
			return digestErr
		}

		next, err := c.advanceToward(g, frame)
		if next == nil {
			if err != nil {
				return err
			}
			return status.Failuref(op, ErrFrameRange,
				"frame %d is not stored (nearest granule covers %d-%d)",
				frame, g.FirstFrame, g.FirstFrame+g.NFrames-1)
		}
		g = next
		digestErr = err
	}
}

// advanceToward follows the longest chain link from g that does not
// overshoot frame. A nil frame set with a nil error means no link
// helps: the frame is past the stored data or in a gap. A digest
// mismatch on the granule taken rides along with it; mismatches on
// overshooting granules are only logged.
func (c *Container) advanceToward(g *frameset.FrameSet, frame int64) (*frameset.FrameSet, error) {
	for _, pos := range []int64{g.LongNext, g.MediumNext, g.Next} {
		if pos == frameset.NilPos {
			continue
		}
		peek, err := c.readGranule(pos)
		if peek == nil {
			return nil, err
		}
		if peek.FirstFrame <= frame {
			return peek, err
		}
		if err != nil {
			c.logger.Warn("digest mismatch while walking the granule chain",
				logging.FilePos(pos), logging.FirstFrame(peek.FirstFrame))
		}
	}
	return nil, nil
}

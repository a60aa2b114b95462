// Package trajectory is the top-level owner of a trajectory file: it
// holds the file handle and byte order, the general info block, the
// molecule system and the active frame set, and exposes creation,
// sequential and random granule access, and dense data retrieval.
//
// A container created with Create is in append mode: header blocks are
// finalized when the first frame set is written, after which the
// molecule system, the provenance names and the particle count are
// frozen. Open and OpenMapped give read-only access; OpenMapped serves
// reads from a memory map, which suits random frame lookups on large
// files.
package trajectory

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/mmap"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/frameset"
	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/metrics"
	"github.com/jbarnoud/tng/pkg/status"
)

// Container is a trajectory file plus the in-memory state needed to
// extend or walk it. Not safe for concurrent use; parallel writers
// share a file by writing disjoint particle ranges into one frame set,
// not by sharing a Container.
type Container struct {
	path string

	file   *os.File
	mm     *mmap.ReaderAt
	reader io.ReadSeeker

	writable bool
	frozen   bool
	closed   bool

	cfg     Config
	order   binary.ByteOrder
	logger  logging.Logger
	metrics *metrics.Registry

	info       Info
	molecules  []Molecule
	blockNames map[block.Kind]string

	// headerEnd is the offset just past the header blocks, where the
	// first granule starts.
	headerEnd int64

	// Latest medium and long chain anchors, writer side.
	lastMediumPos int64
	lastLongPos   int64

	// cur is the active frame set: the one being filled before a write,
	// or the one most recently read. curDirty marks a set not yet on
	// disk. nextFrame is the frame after the last written set, the
	// floor for the next NewFrameSet.
	cur       *frameset.FrameSet
	curDirty  bool
	nextFrame int64

	// readPos is where the next sequential granule read starts: the end
	// of the granule read or written last.
	readPos int64
}

// standardNames seeds the trajectory IDs block with the kinds this
// package writes itself.
func standardNames() map[block.Kind]string {
	return map[block.Kind]string{
		block.KindBoxShape:   block.KindBoxShape.DefaultName(),
		block.KindPositions:  block.KindPositions.DefaultName(),
		block.KindVelocities: block.KindVelocities.DefaultName(),
		block.KindForces:     block.KindForces.DefaultName(),
	}
}

// Create makes a new trajectory file, truncating any existing one, and
// writes the general info block. The container is in append mode: names
// and molecules may be edited until the first frame set is written.
func Create(path string, cfg Config) (*Container, error) {
	const op = "trajectory.create"
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}

	c := &Container{
		path:     path,
		file:     f,
		reader:   f,
		writable: true,
		cfg:      cfg,
		order:    cfg.byteOrder(),
		logger:   cfg.logger().With(logging.Component("trajectory")),
		metrics:  cfg.Metrics,
		info: Info{
			FormatVersion: formatVersion,
			TrajectoryID:  uuid.New().String(),
			CreationTime:  time.Now().Unix(),
			FramesPerSet:  cfg.FramesPerFrameSet,
			MediumStride:  cfg.MediumStride,
			LongStride:    cfg.LongStride,
			FirstSetPos:   frameset.NilPos,
			LastSetPos:    frameset.NilPos,
		},
		blockNames:    standardNames(),
		lastMediumPos: frameset.NilPos,
		lastLongPos:   frameset.NilPos,
	}

	end, err := c.writeInfoBlock()
	if err != nil {
		f.Close()
		return nil, err
	}
	c.headerEnd = end
	c.readPos = end

	c.logger.Info("container created",
		logging.Path(path), logging.String("trajectory_id", c.info.TrajectoryID))
	return c, nil
}

// Open opens an existing trajectory file for reading. The byte order is
// detected from the first block header; header blocks up to the first
// frame set are parsed eagerly.
func Open(path string, cfg Config) (*Container, error) {
	const op = "trajectory.open"
	f, err := os.Open(path)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}
	c, err := openReader(path, cfg, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.file = f
	return c, nil
}

// OpenMapped opens an existing trajectory file for reading through a
// memory map. Granule reads become page cache lookups, which pays off
// for random access patterns over large files.
func OpenMapped(path string, cfg Config) (*Container, error) {
	const op = "trajectory.open_mapped"
	m, err := mmap.Open(path)
	if err != nil {
		return nil, status.Wrap(status.Critical, op, nil, err)
	}
	c, err := openReader(path, cfg, io.NewSectionReader(m, 0, int64(m.Len())))
	if err != nil {
		m.Close()
		return nil, err
	}
	c.mm = m
	return c, nil
}

// openReader runs the shared read-side setup: byte order detection, the
// info block, and the header scan up to the first granule.
func openReader(path string, cfg Config, r io.ReadSeeker) (*Container, error) {
	const op = "trajectory.open"
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var head [16]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, status.Criticalf(op, ErrCorruptHeader, "reading the first block header: %v", err)
	}
	order, err := block.DetectOrder(head[:])
	if err != nil {
		return nil, err
	}

	c := &Container{
		path:          path,
		reader:        r,
		cfg:           cfg,
		order:         order,
		logger:        cfg.logger().With(logging.Component("trajectory")),
		metrics:       cfg.Metrics,
		frozen:        true,
		blockNames:    standardNames(),
		lastMediumPos: frameset.NilPos,
		lastLongPos:   frameset.NilPos,
	}
	tm := logging.StartTimer(c.logger, "header region parsed", logging.Path(path))
	if err := c.scanHeaders(); err != nil {
		return nil, err
	}
	tm.EndDebug()

	c.logger.Info("container opened",
		logging.Path(path), logging.String("trajectory_id", c.info.TrajectoryID),
		logging.Int64("frame_sets", c.info.NFrameSets), logging.Frames(c.info.TotalFrames))
	return c, nil
}

// scanHeaders parses the header region: the info block, then molecules
// and trajectory IDs when present, stopping at the first frame set
// block. Digest mismatches on header blocks are logged and tolerated;
// the payloads still have to parse.
func (c *Container) scanHeaders() error {
	const op = "trajectory.open"

	if _, err := c.reader.Seek(0, io.SeekStart); err != nil {
		return status.Wrap(status.Critical, op, nil, err)
	}
	blk, err := block.Read(c.reader, c.order, c.cfg.hashMode())
	if err != nil && !errors.Is(err, block.ErrDigestMismatch) {
		return err
	}
	if err != nil {
		c.warnHeaderDigest(blk)
	}
	if blk.Kind != block.KindGeneralInfo {
		return status.Criticalf(op, ErrCorruptHeader, "first block is %s", blk.Kind)
	}
	c.recordRead(blk)
	info, err := parseInfoPayload(blk.Payload, c.order)
	if err != nil {
		return err
	}
	c.info = *info
	c.nextFrame = info.TotalFrames

	for {
		pos, err := c.reader.Seek(0, io.SeekCurrent)
		if err != nil {
			return status.Wrap(status.Critical, op, nil, err)
		}
		c.headerEnd = pos
		c.readPos = pos

		h, err := block.ReadHeader(c.reader, c.order)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch h.Kind {
		case block.KindFrameSet:
			// Header region ends here. A file whose info block never
			// had its chain anchor patched still reads: the scan
			// position is the fallback anchor.
			if c.info.FirstSetPos == frameset.NilPos {
				c.info.FirstSetPos = pos
			}
			return nil
		case block.KindMolecules:
			payload, err := c.rereadHeaderBlock(pos)
			if err != nil {
				return err
			}
			mols, err := parseMoleculesPayload(payload, c.order)
			if err != nil {
				return err
			}
			c.molecules = mols
		case block.KindTrajectoryIDs:
			payload, err := c.rereadHeaderBlock(pos)
			if err != nil {
				return err
			}
			names, err := parseTrajectoryIDsPayload(payload, c.order)
			if err != nil {
				return err
			}
			for k, name := range names {
				c.blockNames[k] = name
			}
		default:
			// Unknown header kinds round-trip opaquely; skip.
			c.logger.Warn("skipping unknown header block",
				logging.BlockKind(int64(h.Kind)), logging.FilePos(pos))
		}
	}
}

// rereadHeaderBlock re-reads a header block in full after ReadHeader
// already skipped its payload.
func (c *Container) rereadHeaderBlock(pos int64) ([]byte, error) {
	blk, err := block.ReadAt(c.reader, pos, c.order, c.cfg.hashMode())
	if err != nil && !errors.Is(err, block.ErrDigestMismatch) {
		return nil, err
	}
	if err != nil {
		c.warnHeaderDigest(blk)
	}
	c.recordRead(blk)
	return blk.Payload, nil
}

func (c *Container) warnHeaderDigest(blk *block.Block) {
	c.logger.Warn("header block digest mismatch",
		logging.BlockKind(int64(blk.Kind)), logging.BlockName(blk.Name))
	if c.metrics != nil {
		c.metrics.RecordDigestMismatch(blk.Kind.String())
	}
}

func (c *Container) recordRead(blk *block.Block) {
	if c.metrics != nil {
		c.metrics.RecordBlockRead(blk.Kind.String(), blk.Length)
	}
}

// freeze finalizes the header region: the info block is rewritten with
// its frozen strings, the molecules and trajectory IDs blocks follow,
// and the file is truncated there. Granules append after this point and
// the info block is only patched in place, never resized.
func (c *Container) freeze() error {
	c.info.NParticles = c.NumParticles()

	end, err := c.writeInfoBlock()
	if err != nil {
		return err
	}
	if len(c.molecules) > 0 {
		blk := block.New(block.KindMolecules, appendMoleculesPayload(c.molecules, c.order))
		n, err := block.Write(c.file, blk, c.order, c.cfg.hashMode())
		if err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.RecordBlockWrite(blk.Kind.String(), n)
		}
		end += n
	}
	if c.cur != nil {
		for _, d := range c.cur.Blocks {
			if _, ok := c.blockNames[d.Kind]; !ok {
				c.blockNames[d.Kind] = d.Name
			}
		}
	}
	blk := block.New(block.KindTrajectoryIDs, appendTrajectoryIDsPayload(c.blockNames, c.order))
	n, err := block.Write(c.file, blk, c.order, c.cfg.hashMode())
	if err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordBlockWrite(blk.Kind.String(), n)
	}
	end += n

	if err := c.file.Truncate(end); err != nil {
		return status.Wrap(status.Critical, "trajectory.freeze", nil, err)
	}
	c.headerEnd = end
	c.readPos = end
	c.frozen = true

	c.logger.Info("headers frozen",
		logging.FilePos(end), logging.Particles(c.info.NParticles),
		logging.Count(len(c.molecules)))
	return nil
}

// Close flushes pending state and releases the file. A writer with an
// unwritten active frame set writes it first; a writer that never wrote
// a granule still freezes its headers, so molecule-only files
// round-trip. Close is idempotent.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	var firstErr error

	if c.writable {
		if c.cur != nil && c.curDirty {
			if err := c.WriteFrameSet(); err != nil {
				firstErr = err
			}
		} else if !c.frozen {
			if err := c.freeze(); err != nil {
				firstErr = err
			}
		}
		if err := c.file.Sync(); err != nil && firstErr == nil {
			firstErr = status.Wrap(status.Critical, "trajectory.close", nil, err)
		}
	}

	c.closed = true
	var closeErr error
	switch {
	case c.mm != nil:
		closeErr = c.mm.Close()
	case c.file != nil:
		closeErr = c.file.Close()
	}
	if closeErr != nil && firstErr == nil {
		firstErr = status.Wrap(status.Critical, "trajectory.close", nil, closeErr)
	}

	c.logger.Info("container closed",
		logging.Path(c.path), logging.Int64("frame_sets", c.info.NFrameSets))
	return firstErr
}

// Path returns the file path the container was created or opened with.
func (c *Container) Path() string {
	return c.path
}

// ByteOrder returns "big" or "little", as written or detected.
func (c *Container) ByteOrder() string {
	if c.order == nil {
		return "big"
	}
	if c.order.String() == "LittleEndian" {
		return "little"
	}
	return "big"
}

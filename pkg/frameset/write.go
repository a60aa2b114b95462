package frameset

import (
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/logging"
	"github.com/jbarnoud/tng/pkg/status"
)

// Write serializes the granule at the writer's current offset: the frame
// set block carrying links and the table of contents, then every mapping
// block, then every data block in insertion order. Payload encoding for
// sibling data blocks runs on a bounded worker pool; the bytes hitting
// the file stay sequential and deterministic. fs.Pos and fs.TOC are
// filled in.
//
// A failure after the first byte leaves a torn granule behind; the
// caller owns the file and decides whether to truncate back to fs.Pos.
func (fs *FrameSet) Write(ws io.WriteSeeker, opts WriteOptions) error {
	const op = "frameset.write"
	opts = opts.normalized()
	start := time.Now()

	pos, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return status.Wrap(status.Critical, op, nil, err)
	}

	payloads, err := fs.encodePayloads(opts)
	if err != nil {
		return err
	}

	members := make([]*block.Block, 0, len(fs.Mappings)+len(fs.Blocks))
	for _, m := range fs.Mappings {
		members = append(members, block.New(block.KindParticleMapping, appendMappingPayload(m, opts.Order)))
	}
	for i, d := range fs.Blocks {
		bl := block.New(d.Kind, payloads[i])
		bl.Name = d.Name
		bl.Dependency = block.DepTrajectory
		if d.ParticleDependent {
			bl.Dependency |= block.DepParticle
		}
		bl.Length = bl.Size() + int64(len(bl.Payload))
		members = append(members, bl)
	}

	fs.Pos = pos
	fsBlk := block.New(block.KindFrameSet, nil)
	fsLen := fsBlk.Size() + int64(fsPayloadFixed) + int64(len(members))*tocEntryLen

	toc := make([]TOCEntry, len(members))
	off := fsLen
	for i, m := range members {
		toc[i] = TOCEntry{Kind: m.Kind, Offset: off, Length: m.Length}
		off += m.Length
	}
	fs.TOC = toc
	fsBlk.Payload = appendFrameSetPayload(fs, opts.Order)

	for _, bl := range append([]*block.Block{fsBlk}, members...) {
		n, err := block.Write(ws, bl, opts.Order, opts.Hash)
		if err != nil {
			return err
		}
		if opts.Metrics != nil {
			opts.Metrics.RecordBlockWrite(bl.Kind.String(), n)
		}
		opts.Logger.Debug("block written",
			logging.BlockKind(int64(bl.Kind)), logging.Bytes(n), logging.FilePos(pos))
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordFrameSetWrite(fs.NFrames, time.Since(start))
	}
	opts.Logger.Info("frame set written",
		logging.FirstFrame(fs.FirstFrame), logging.Frames(fs.NFrames),
		logging.FilePos(pos), logging.Count(len(members)), logging.Latency(time.Since(start)))
	return nil
}

// encodePayloads builds every data block payload, fanning the CPU-bound
// value encoding out over at most opts.Workers goroutines.
func (fs *FrameSet) encodePayloads(opts WriteOptions) ([][]byte, error) {
	payloads := make([][]byte, len(fs.Blocks))
	if len(fs.Blocks) == 0 {
		return payloads, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var group errgroup.Group
	group.SetLimit(workers)
	for i, d := range fs.Blocks {
		i, d := i, d
		group.Go(func() error {
			p, err := buildDataPayload(d, opts)
			if err != nil {
				return err
			}
			payloads[i] = p
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if status.IsCritical(err) || status.IsRecoverable(err) {
			return nil, err
		}
		return nil, status.Wrap(status.Recoverable, "frameset.write", nil, err)
	}
	return payloads, nil
}

// Links carries the six link positions of a frame set block.
type Links struct {
	Next, Prev             int64
	MediumNext, MediumPrev int64
	LongNext, LongPrev     int64
}

// LinkMask selects which link fields PatchLinks rewrites.
type LinkMask uint8

const (
	LinkNext LinkMask = 1 << iota
	LinkPrev
	LinkMediumNext
	LinkMediumPrev
	LinkLongNext
	LinkLongPrev
)

// PatchLinks rewrites selected link fields of the frame set block at an
// absolute file position, in place. The block keeps its length, so
// nothing after it moves; its digest is recomputed under HashUse.
func PatchLinks(rws io.ReadWriteSeeker, pos int64, links Links, mask LinkMask, order binary.ByteOrder, hash block.HashMode) error {
	const op = "frameset.patch_links"
	if order == nil {
		order = binary.BigEndian
	}

	blk, err := block.ReadAt(rws, pos, order, hash)
	if err != nil && !errors.Is(err, block.ErrDigestMismatch) {
		return err
	}
	if blk.Kind != block.KindFrameSet {
		return status.Criticalf(op, ErrNotFrameSet, "block at %d is %s", pos, blk.Kind)
	}
	if len(blk.Payload) < fsPayloadFixed {
		return status.Criticalf(op, ErrCorruptPayload, "frame set payload is %d bytes", len(blk.Payload))
	}

	put := func(off int, set LinkMask, v int64) {
		if mask&set != 0 {
			order.PutUint64(blk.Payload[off:off+8], uint64(v))
		}
	}
	put(16, LinkNext, links.Next)
	put(24, LinkPrev, links.Prev)
	put(32, LinkMediumNext, links.MediumNext)
	put(40, LinkMediumPrev, links.MediumPrev)
	put(48, LinkLongNext, links.LongNext)
	put(56, LinkLongPrev, links.LongPrev)

	_, err = block.WriteAt(rws, pos, blk, order, hash)
	return err
}

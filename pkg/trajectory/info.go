package trajectory

import (
	"encoding/binary"
	"strings"

	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/frameset"
	"github.com/jbarnoud/tng/pkg/status"
)

// formatVersion is stamped into every general info block. Readers reject
// versions they do not know.
const formatVersion int64 = 1

// Info is the general info block: file provenance strings plus the
// counters and chain anchors a reader needs before touching any granule.
// Counters are patched in place as frame sets are appended; the strings
// freeze with the headers.
type Info struct {
	FormatVersion int64

	// First/last pairs record who created the file and who touched it
	// last, in the tradition of the reference trajectory tools.
	ProgramFirst, ProgramLast     string
	UserFirst, UserLast           string
	ComputerFirst, ComputerLast   string
	SignatureFirst, SignatureLast string
	Forcefield                    string

	// TrajectoryID is a UUID stamped at Create, giving provenance
	// tooling a stable handle on this file.
	TrajectoryID string

	// CreationTime is seconds since the Unix epoch.
	CreationTime int64

	FramesPerSet int64
	TotalFrames  int64
	NParticles   int64
	MediumStride int64
	LongStride   int64

	// FirstSetPos and LastSetPos anchor the granule chain; NilPos while
	// the file holds no frame set.
	FirstSetPos int64
	LastSetPos  int64
	NFrameSets  int64
}

func appendInfoPayload(info *Info, order binary.ByteOrder) []byte {
	buf := make([]byte, 0, 256)
	buf = appendI64(buf, order, info.FormatVersion)
	buf = appendStr(buf, info.ProgramFirst)
	buf = appendStr(buf, info.ProgramLast)
	buf = appendStr(buf, info.UserFirst)
	buf = appendStr(buf, info.UserLast)
	buf = appendStr(buf, info.ComputerFirst)
	buf = appendStr(buf, info.ComputerLast)
	buf = appendStr(buf, info.SignatureFirst)
	buf = appendStr(buf, info.SignatureLast)
	buf = appendStr(buf, info.Forcefield)
	buf = appendStr(buf, info.TrajectoryID)
	buf = appendI64(buf, order, info.CreationTime)
	buf = appendI64(buf, order, info.FramesPerSet)
	buf = appendI64(buf, order, info.TotalFrames)
	buf = appendI64(buf, order, info.NParticles)
	buf = appendI64(buf, order, info.MediumStride)
	buf = appendI64(buf, order, info.LongStride)
	buf = appendI64(buf, order, info.FirstSetPos)
	buf = appendI64(buf, order, info.LastSetPos)
	buf = appendI64(buf, order, info.NFrameSets)
	return buf
}

func parseInfoPayload(data []byte, order binary.ByteOrder) (*Info, error) {
	p := &payloadReader{data: data, order: order}
	info := &Info{FormatVersion: p.i64()}
	if p.err == nil && info.FormatVersion != formatVersion {
		return nil, status.Failuref("trajectory.open", ErrVersion,
			"file declares version %d, this build reads %d", info.FormatVersion, formatVersion)
	}
	info.ProgramFirst = p.str()
	info.ProgramLast = p.str()
	info.UserFirst = p.str()
	info.UserLast = p.str()
	info.ComputerFirst = p.str()
	info.ComputerLast = p.str()
	info.SignatureFirst = p.str()
	info.SignatureLast = p.str()
	info.Forcefield = p.str()
	info.TrajectoryID = p.str()
	info.CreationTime = p.i64()
	info.FramesPerSet = p.i64()
	info.TotalFrames = p.i64()
	info.NParticles = p.i64()
	info.MediumStride = p.i64()
	info.LongStride = p.i64()
	info.FirstSetPos = p.i64()
	info.LastSetPos = p.i64()
	info.NFrameSets = p.i64()
	if err := p.done(); err != nil {
		return nil, status.Criticalf("trajectory.open", ErrCorruptHeader, "info block: %v", err)
	}
	if info.FramesPerSet < 1 || info.TotalFrames < 0 || info.NParticles < 0 || info.NFrameSets < 0 {
		return nil, status.Criticalf("trajectory.open", ErrCorruptHeader,
			"info counters: %d frames per set, %d frames, %d particles, %d frame sets",
			info.FramesPerSet, info.TotalFrames, info.NParticles, info.NFrameSets)
	}
	return info, nil
}

// setName validates and stores one provenance string. Names freeze with
// the headers: once the first frame set is on disk the info block must
// keep its byte length so in-place counter patches stay aligned.
func (c *Container) setName(dst *string, name string) error {
	const op = "trajectory.set_name"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if !c.writable {
		return status.Failuref(op, ErrReadOnly, "opened for reading")
	}
	if c.frozen {
		return status.Failuref(op, ErrFrozen, "names freeze once the first frame set is written")
	}
	if len(name) > block.MaxNameLen {
		return status.Failuref(op, ErrMolecule, "name is %d bytes, the cap is %d", len(name), block.MaxNameLen)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return status.Failuref(op, ErrMolecule, "name contains NUL")
	}
	*dst = name
	return nil
}

// ProgramName returns the first or last program name recorded in the
// info block.
func (c *Container) ProgramName(last bool) string {
	if last {
		return c.info.ProgramLast
	}
	return c.info.ProgramFirst
}

// SetProgramName records the program writing the file. Setting the first
// name also seeds the last one while it is empty, matching the behavior
// of the reference tools.
func (c *Container) SetProgramName(name string, last bool) error {
	if last {
		return c.setName(&c.info.ProgramLast, name)
	}
	if err := c.setName(&c.info.ProgramFirst, name); err != nil {
		return err
	}
	if c.info.ProgramLast == "" {
		c.info.ProgramLast = name
	}
	return nil
}

// UserName returns the first or last user name recorded in the info block.
func (c *Container) UserName(last bool) string {
	if last {
		return c.info.UserLast
	}
	return c.info.UserFirst
}

// SetUserName records the user writing the file.
func (c *Container) SetUserName(name string, last bool) error {
	if last {
		return c.setName(&c.info.UserLast, name)
	}
	if err := c.setName(&c.info.UserFirst, name); err != nil {
		return err
	}
	if c.info.UserLast == "" {
		c.info.UserLast = name
	}
	return nil
}

// ComputerName returns the first or last computer name recorded in the
// info block.
func (c *Container) ComputerName(last bool) string {
	if last {
		return c.info.ComputerLast
	}
	return c.info.ComputerFirst
}

// SetComputerName records the machine writing the file.
func (c *Container) SetComputerName(name string, last bool) error {
	if last {
		return c.setName(&c.info.ComputerLast, name)
	}
	if err := c.setName(&c.info.ComputerFirst, name); err != nil {
		return err
	}
	if c.info.ComputerLast == "" {
		c.info.ComputerLast = name
	}
	return nil
}

// Signature returns the first or last signature recorded in the info block.
func (c *Container) Signature(last bool) string {
	if last {
		return c.info.SignatureLast
	}
	return c.info.SignatureFirst
}

// SetSignature records a signature for the writing user.
func (c *Container) SetSignature(sig string, last bool) error {
	if last {
		return c.setName(&c.info.SignatureLast, sig)
	}
	if err := c.setName(&c.info.SignatureFirst, sig); err != nil {
		return err
	}
	if c.info.SignatureLast == "" {
		c.info.SignatureLast = sig
	}
	return nil
}

// ForcefieldName returns the forcefield recorded in the info block.
func (c *Container) ForcefieldName() string {
	return c.info.Forcefield
}

// SetForcefieldName records the forcefield the trajectory was produced
// with.
func (c *Container) SetForcefieldName(name string) error {
	return c.setName(&c.info.Forcefield, name)
}

// TrajectoryID returns the UUID stamped at Create.
func (c *Container) TrajectoryID() string {
	return c.info.TrajectoryID
}

// Info returns a copy of the general info block.
func (c *Container) Info() Info {
	return c.info
}

// NumFrames returns the total number of frames stored across all frame
// sets.
func (c *Container) NumFrames() int64 {
	return c.info.TotalFrames
}

// NumFrameSets returns the number of frame sets written to the file.
func (c *Container) NumFrameSets() int64 {
	return c.info.NFrameSets
}

// MediumStride returns the medium skip-chain stride recorded in the file.
func (c *Container) MediumStride() int64 {
	return c.info.MediumStride
}

// LongStride returns the long skip-chain stride recorded in the file.
func (c *Container) LongStride() int64 {
	return c.info.LongStride
}

// NumParticles returns the particle count: derived from the molecule
// system when one is registered, otherwise whatever SetParticleCount
// recorded (or the value read from the file).
func (c *Container) NumParticles() int64 {
	if n := c.moleculeParticles(); n > 0 {
		return n
	}
	return c.info.NParticles
}

// SetParticleCount records the particle count for files that carry no
// molecule description. A registered molecule system overrides it.
func (c *Container) SetParticleCount(n int64) error {
	const op = "trajectory.set_particle_count"
	if c.closed {
		return status.Failuref(op, ErrClosed, "container closed")
	}
	if !c.writable {
		return status.Failuref(op, ErrReadOnly, "opened for reading")
	}
	if c.frozen {
		return status.Failuref(op, ErrFrozen, "particle count freezes once the first frame set is written")
	}
	if n < 0 {
		return status.Failuref(op, ErrConfig, "particle count %d", n)
	}
	c.info.NParticles = n
	return nil
}

// writeInfoBlock serializes the info block at the start of the file and
// returns the offset just past it.
func (c *Container) writeInfoBlock() (int64, error) {
	if _, err := c.file.Seek(0, 0); err != nil {
		return 0, status.Wrap(status.Critical, "trajectory.write_info", nil, err)
	}
	blk := block.New(block.KindGeneralInfo, appendInfoPayload(&c.info, c.order))
	n, err := block.Write(c.file, blk, c.order, c.cfg.hashMode())
	if err != nil {
		return 0, err
	}
	if c.metrics != nil {
		c.metrics.RecordBlockWrite(blk.Kind.String(), n)
	}
	return n, nil
}

// patchInfo rewrites the info block in place with current counters. The
// strings are frozen, so the serialized length cannot change.
func (c *Container) patchInfo() error {
	blk := block.New(block.KindGeneralInfo, appendInfoPayload(&c.info, c.order))
	n, err := block.WriteAt(c.file, 0, blk, c.order, c.cfg.hashMode())
	if err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordBlockWrite(blk.Kind.String(), n)
	}
	return nil
}

// readOpts builds the frame set read options for this container.
func (c *Container) readOpts() frameset.ReadOptions {
	return frameset.ReadOptions{
		Order:   c.order,
		Hash:    c.cfg.hashMode(),
		Logger:  c.logger,
		Metrics: c.metrics,
	}
}

func (c *Container) writeOpts() frameset.WriteOptions {
	return frameset.WriteOptions{
		Order:     c.order,
		Hash:      c.cfg.hashMode(),
		Precision: c.cfg.CompressionPrecision,
		Workers:   c.cfg.Workers,
		Logger:    c.logger,
		Metrics:   c.metrics,
	}
}

package trajectory

import (
	"github.com/jbarnoud/tng/pkg/block"
	"github.com/jbarnoud/tng/pkg/frameset"
	"github.com/jbarnoud/tng/pkg/status"
)

// The classic single-call surface: standard kinds with their
// conventional shapes. Positions, velocities and forces are three
// values per particle per frame and ride the value codec; the box
// shape is nine values per frame, stored losslessly under zstd.

// activeForWrite returns the active frame set if it can still take
// data blocks.
func (c *Container) activeForWrite(op string) (*frameset.FrameSet, error) {
	if c.closed {
		return nil, status.Failuref(op, ErrClosed, "container closed")
	}
	if !c.writable {
		return nil, status.Failuref(op, ErrReadOnly, "opened for reading")
	}
	if c.cur == nil {
		return nil, status.Failuref(op, ErrNoFrameSet, "start a frame set first")
	}
	if !c.curDirty {
		return nil, status.Failuref(op, ErrNoFrameSet, "active frame set already written")
	}
	return c.cur, nil
}

// particleBlock adds a per-particle float block covering every particle
// of the system for every frame of the active set.
func (c *Container) particleBlock(op string, kind block.Kind, values []float32) error {
	fs, err := c.activeForWrite(op)
	if err != nil {
		return err
	}
	n := c.NumParticles()
	if n < 1 {
		return status.Failuref(op, ErrNoParticles,
			"declare molecules or call SetParticleCount first")
	}
	return fs.AddParticleDataBlock(kind, frameset.CodecTNG,
		fs.NFrames, 3, 1, 0, n, frameset.NewFloatArray(values))
}

// SetPositions stores particle coordinates for the active frame set:
// frames by particles by x, y, z, quantized to the configured precision.
func (c *Container) SetPositions(values []float32) error {
	return c.particleBlock("trajectory.set_positions", block.KindPositions, values)
}

// SetVelocities stores particle velocities for the active frame set.
func (c *Container) SetVelocities(values []float32) error {
	return c.particleBlock("trajectory.set_velocities", block.KindVelocities, values)
}

// SetForces stores particle forces for the active frame set.
func (c *Container) SetForces(values []float32) error {
	return c.particleBlock("trajectory.set_forces", block.KindForces, values)
}

// SetBoxShape stores the simulation box for the active frame set: nine
// values per frame, the three box vectors row by row, bit-exact.
func (c *Container) SetBoxShape(values []float64) error {
	const op = "trajectory.set_box_shape"
	fs, err := c.activeForWrite(op)
	if err != nil {
		return err
	}
	return fs.AddDataBlock(block.KindBoxShape, frameset.CodecZstd,
		fs.NFrames, 9, 1, frameset.NewDoubleArray(values))
}

// Positions returns the active frame set's coordinates.
func (c *Container) Positions() (*ParticleArray, error) {
	return c.ParticleData(block.KindPositions)
}

// Velocities returns the active frame set's velocities.
func (c *Container) Velocities() (*ParticleArray, error) {
	return c.ParticleData(block.KindVelocities)
}

// Forces returns the active frame set's forces.
func (c *Container) Forces() (*ParticleArray, error) {
	return c.ParticleData(block.KindForces)
}

// BoxShape returns the active frame set's box vectors.
func (c *Container) BoxShape() (*ValueArray, error) {
	return c.Data(block.KindBoxShape)
}

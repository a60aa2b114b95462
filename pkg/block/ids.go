package block

import "fmt"

// Kind identifies what a block's payload contains. The ids are stable on
// disk: 0-6 are structural, ids from 10000 carry per-frame trajectory
// data, and unassigned ids round-trip opaquely.
type Kind int64

const (
	// KindReserved is never emitted.
	KindReserved Kind = 0
	// KindGeneralInfo is the leading block of every file.
	KindGeneralInfo Kind = 1
	// KindMolecules describes the molecular system topology.
	KindMolecules Kind = 2
	// KindTrajectoryIDs names the trajectories stored in the file.
	KindTrajectoryIDs Kind = 3
	// KindFrameSet opens a frame set and carries its block directory.
	KindFrameSet Kind = 4
	// KindTableOfContents is a reserved id. The directory rides inside
	// the frame set block instead of a block of its own.
	KindTableOfContents Kind = 5
	// KindParticleMapping translates granule-local particle numbers to
	// real ones.
	KindParticleMapping Kind = 6

	// KindBoxShape stores the simulation box, once per stored frame.
	KindBoxShape Kind = 10000
	// KindPositions stores particle coordinates.
	KindPositions Kind = 10001
	// KindVelocities stores particle velocities.
	KindVelocities Kind = 10002
	// KindForces stores particle forces.
	KindForces Kind = 10003
)

// Dependency bits of a block header.
const (
	// DepTrajectory marks a block that belongs to a frame set.
	DepTrajectory uint8 = 1 << 0
	// DepParticle marks data recorded per particle rather than per frame.
	DepParticle uint8 = 1 << 1
)

// String returns the kind's metric label.
func (k Kind) String() string {
	switch k {
	case KindGeneralInfo:
		return "general_info"
	case KindMolecules:
		return "molecules"
	case KindTrajectoryIDs:
		return "trajectory_ids"
	case KindFrameSet:
		return "frame_set"
	case KindTableOfContents:
		return "table_of_contents"
	case KindParticleMapping:
		return "particle_mapping"
	case KindBoxShape:
		return "box_shape"
	case KindPositions:
		return "positions"
	case KindVelocities:
		return "velocities"
	case KindForces:
		return "forces"
	default:
		return fmt.Sprintf("kind_%d", int64(k))
	}
}

// DefaultName returns the conventional human-readable block name. Names
// are informative only; readers never branch on them.
func (k Kind) DefaultName() string {
	switch k {
	case KindGeneralInfo:
		return "GENERAL INFO"
	case KindMolecules:
		return "MOLECULES"
	case KindTrajectoryIDs:
		return "TRAJECTORY IDS AND NAMES"
	case KindFrameSet:
		return "TRAJECTORY FRAME SET"
	case KindTableOfContents:
		return "BLOCK TABLE OF CONTENTS"
	case KindParticleMapping:
		return "PARTICLE MAPPING"
	case KindBoxShape:
		return "BOX SHAPE"
	case KindPositions:
		return "POSITIONS"
	case KindVelocities:
		return "VELOCITIES"
	case KindForces:
		return "FORCES"
	default:
		return fmt.Sprintf("DATA BLOCK %d", int64(k))
	}
}

// DefaultDependency returns the dependency bits a kind conventionally
// carries. Callers may override for user-defined kinds.
func DefaultDependency(k Kind) uint8 {
	switch {
	case k == KindPositions, k == KindVelocities, k == KindForces:
		return DepTrajectory | DepParticle
	case k == KindParticleMapping:
		return DepTrajectory | DepParticle
	case k == KindFrameSet, k == KindTableOfContents:
		return DepTrajectory
	case k >= KindBoxShape:
		return DepTrajectory
	default:
		return 0
	}
}

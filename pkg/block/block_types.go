package block

// Limits of the on-disk block format.
const (
	// MaxNameLen caps the block name, terminator excluded.
	MaxNameLen = 1024

	// MaxBlockLen caps the declared size of a single block, so a corrupt
	// length field cannot trigger an absurd allocation.
	MaxBlockLen = int64(1) << 40

	// DigestLen is the size of the MD5 payload digest.
	DigestLen = 16

	// fixedHeadLen covers the length, kind and dependency fields.
	fixedHeadLen = 8 + 8 + 1

	// minBlockLen is an empty-name, empty-payload block.
	minBlockLen = int64(fixedHeadLen + 1 + DigestLen)
)

// HashMode selects whether payload digests are computed and verified.
type HashMode uint8

const (
	// HashUse computes digests on write and verifies recorded ones on
	// read. A zero digest on read is skipped with a warning.
	HashUse HashMode = iota
	// HashSkip writes zero digests and verifies nothing.
	HashSkip
)

// Header is the self-describing part of every block.
//
// Format: [Length:8][Kind:8][Dependency:1][Name:NUL][Digest:16]
type Header struct {
	// Length is the full serialized block size, header included.
	Length int64
	// Kind identifies the payload.
	Kind Kind
	// Dependency is a bit mask of DepTrajectory and DepParticle.
	Dependency uint8
	// Name is informative only, at most MaxNameLen bytes.
	Name string
	// Digest is the MD5 of the payload; all zero means not recorded.
	Digest [DigestLen]byte
}

// Size returns the serialized header size in bytes.
func (h *Header) Size() int64 {
	return int64(fixedHeadLen + len(h.Name) + 1 + DigestLen)
}

// PayloadLen returns the payload size the header declares.
func (h *Header) PayloadLen() int64 {
	return h.Length - h.Size()
}

// DigestRecorded reports whether the digest field is non-zero.
func (h *Header) DigestRecorded() bool {
	return h.Digest != [DigestLen]byte{}
}

// Block is one header plus its raw payload. Payload interpretation is the
// caller's business; unknown kinds round-trip bit-exactly.
type Block struct {
	Header
	Payload []byte
}

// New builds an in-memory block with the kind's conventional name and
// dependency bits. Length and Digest are filled in by Marshal or Write.
func New(kind Kind, payload []byte) *Block {
	b := &Block{
		Header: Header{
			Kind:       kind,
			Dependency: DefaultDependency(kind),
			Name:       kind.DefaultName(),
		},
		Payload: payload,
	}
	b.Length = b.Size() + int64(len(payload))
	return b
}
